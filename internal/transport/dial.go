package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
)

// brokerAddress resolves a broker URL (mqtt://host:port or
// mqtts://host:port) into a TLS flag and a host:port pair. Defaults to port
// 1883 for mqtt and 8883 for mqtts when the URL omits one, matching the
// protocol's connection configuration rules.
func brokerAddress(brokerURL string) (tlsEnabled bool, hostPort string, err error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return false, "", fmt.Errorf("transport: invalid broker url %q: %w", brokerURL, err)
	}

	host := u.Hostname()
	if host == "" {
		return false, "", fmt.Errorf("transport: invalid broker url %q: missing host", brokerURL)
	}

	tlsEnabled = u.Scheme == "mqtts" || u.Scheme == "ssl" || u.Scheme == "tls"
	port := u.Port()
	if port == "" {
		if tlsEnabled {
			port = "8883"
		} else {
			port = "1883"
		}
	}

	return tlsEnabled, net.JoinHostPort(host, port), nil
}

// dial opens the raw network connection the paho client reads and writes
// frames over. TLS is negotiated with the default configuration, following
// the RFC's requirement to upgrade mqtts:// connections without exposing
// tuning knobs this core has no opinion about.
func dial(ctx context.Context, brokerURL string) (net.Conn, error) {
	tlsEnabled, hostPort, err := brokerAddress(brokerURL)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	if !tlsEnabled {
		return d.DialContext(ctx, "tcp", hostPort)
	}

	conn, err := d.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(conn, &tls.Config{ServerName: hostPortToServerName(hostPort)})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("transport: tls handshake: %w", err)
	}
	return tlsConn, nil
}

func hostPortToServerName(hostPort string) string {
	host, _, err := net.SplitHostPort(hostPort)
	if err != nil {
		return hostPort
	}
	return host
}
