package transport

import "testing"

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{State{Phase: PhaseConnecting}, "connecting"},
		{State{Phase: PhaseConnected}, "connected"},
		{State{Phase: PhaseDisconnected, Reason: "eof"}, "disconnected(eof)"},
		{State{Phase: PhaseReconnecting, Attempt: 3}, "reconnecting(3)"},
		{State{Phase: PhasePermanentlyDisconnected, Reason: "max attempts"}, "permanently_disconnected(max attempts)"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestStateBoxWatchReceivesNextTransition(t *testing.T) {
	box := newStateBox(State{Phase: PhaseConnecting})
	ch := box.watch()

	go box.set(State{Phase: PhaseConnected})

	got := <-ch
	if got.Phase != PhaseConnected {
		t.Errorf("got %v", got)
	}
	if box.get().Phase != PhaseConnected {
		t.Errorf("get() = %v", box.get())
	}
}

func TestStateBoxMultipleWatchersAllNotified(t *testing.T) {
	box := newStateBox(State{Phase: PhaseConnecting})
	ch1 := box.watch()
	ch2 := box.watch()

	box.set(State{Phase: PhaseDisconnected, Reason: "x"})

	s1 := <-ch1
	s2 := <-ch2
	if s1.Phase != PhaseDisconnected || s2.Phase != PhaseDisconnected {
		t.Errorf("s1=%v s2=%v", s1, s2)
	}
}
