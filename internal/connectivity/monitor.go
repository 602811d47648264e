// Package connectivity tracks whether the device can currently reach the
// expense backend and reports offline/online transitions.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"
)

// Probe answers a single "can we reach the network right now" question.
type Probe func(ctx context.Context) bool

// Monitor periodically probes the backend and edge-detects transitions.
// Subscribers receive the new state on every change; an offline-to-online
// edge arrives as true.
type Monitor struct {
	probe       Probe
	subscribers map[chan bool]struct{}
	interval    time.Duration
	mu          sync.RWMutex
	online      bool
}

// NewMonitor builds a monitor that probes the host of backendURL by TCP
// dial on the given interval.
func NewMonitor(backendURL string, interval time.Duration) (*Monitor, error) {
	addr, err := dialAddress(backendURL)
	if err != nil {
		return nil, err
	}
	return NewMonitorWithProbe(tcpProbe(addr), interval), nil
}

// NewMonitorWithProbe builds a monitor around a custom probe.
func NewMonitorWithProbe(probe Probe, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		probe:       probe,
		interval:    interval,
		subscribers: make(map[chan bool]struct{}),
	}
}

// Refresh probes once, synchronously, and returns the resulting state.
// One-shot callers use this instead of waiting for the polling loop.
func (m *Monitor) Refresh(ctx context.Context) bool {
	m.check(ctx)
	return m.Online()
}

// Run probes until ctx is canceled. The first probe fires immediately so
// callers start with a real answer instead of the zero value.
func (m *Monitor) Run(ctx context.Context) {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// Online reports the most recently probed state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers for transition notifications.
func (m *Monitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan bool, 1)
	m.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Monitor) Unsubscribe(ch <-chan bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub := range m.subscribers {
		if sub == ch {
			delete(m.subscribers, sub)
			close(sub)
			return
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	online := m.probe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if online == m.online {
		return
	}
	m.online = online

	slog.Info("Connectivity changed", "online", online)
	for sub := range m.subscribers {
		// Replace the stale value if the subscriber hasn't drained yet;
		// only the latest state matters.
		select {
		case sub <- online:
		default:
			select {
			case <-sub:
			default:
			}
			sub <- online
		}
	}
}

func dialAddress(backendURL string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}

func tcpProbe(addr string) Probe {
	return func(ctx context.Context) bool {
		dialer := net.Dialer{Timeout: 3 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}
