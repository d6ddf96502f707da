package main

import (
	"fmt"
	"net"

	"github.com/support-relay/relay/internal/config"
)

// listenFreePort binds the first free port in [Port, Port+PortScan).
func listenFreePort(app config.AppConfig) (net.Listener, int, error) {
	tries := app.PortScan
	if tries <= 0 {
		tries = 1
	}
	var lastErr error
	for port := app.Port; port < app.Port+tries; port++ {
		ln, err := net.Listen("tcp", app.Addr(port))
		if err == nil {
			return ln, port, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("ports %d-%d busy: %w", app.Port, app.Port+tries-1, lastErr)
}
