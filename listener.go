package kvrdb

import (
	"errors"
	"net"
	"time"

	"github.com/raunakns/kvrdb/internal/logging"
)

// ListenerConfig configures Serve.
type ListenerConfig struct {
	// Addr is the TCP address to bind, e.g. "0.0.0.0:5555".
	Addr string
	// KeepAlive is the TCP keepalive period; 0 disables keepalive.
	KeepAlive time.Duration
}

// Serve binds cfg.Addr and accepts connections until the listener is
// closed, handing each accepted socket off to dispatcher as a Connection.
// Accept failures are logged; keepalive failures are logged with the peer
// address and close that connection. Neither stops the listener.
func Serve(cfg ListenerConfig, dispatcher *Dispatcher) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Printf('.', "accept error: %v", err)
			continue
		}

		if tcp, ok := nc.(*net.TCPConn); ok {
			if cfg.KeepAlive > 0 {
				if err := tcp.SetKeepAlive(true); err != nil {
					logging.Printf('.', "%s: error enabling keepalive: %v", nc.RemoteAddr(), err)
					nc.Close()
					continue
				}
				if err := tcp.SetKeepAlivePeriod(cfg.KeepAlive); err != nil {
					logging.Printf('.', "%s: error setting keepalive period: %v", nc.RemoteAddr(), err)
					nc.Close()
					continue
				}
			} else {
				tcp.SetKeepAlive(false)
			}
		}

		go dispatcher.ServeRaw(nc, peerAddr(nc))
	}
}

// peerAddr formats the remote address as "a.b.c.d:port" / "[addr]:port",
// falling back to "[unknown]" if introspection fails.
func peerAddr(nc net.Conn) string {
	addr := nc.RemoteAddr()
	if addr == nil {
		return "[unknown]"
	}
	s := addr.String()
	if s == "" {
		return "[unknown]"
	}
	return s
}
