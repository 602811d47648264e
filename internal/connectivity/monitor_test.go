package connectivity

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boolProbe is a probe whose answer tests flip atomically.
type boolProbe struct {
	online atomic.Bool
}

func (p *boolProbe) probe(context.Context) bool {
	return p.online.Load()
}

func TestMonitorRefresh(t *testing.T) {
	probe := &boolProbe{}
	monitor := NewMonitorWithProbe(probe.probe, time.Minute)

	assert.False(t, monitor.Online(), "a fresh monitor starts offline")
	assert.False(t, monitor.Refresh(context.Background()))

	probe.online.Store(true)
	assert.True(t, monitor.Refresh(context.Background()))
	assert.True(t, monitor.Online())
}

func TestMonitorNotifiesOnTransition(t *testing.T) {
	probe := &boolProbe{}
	monitor := NewMonitorWithProbe(probe.probe, time.Minute)

	ch := monitor.Subscribe()
	defer monitor.Unsubscribe(ch)

	// Same state twice: no notification.
	monitor.Refresh(context.Background())
	monitor.Refresh(context.Background())
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification %v without a transition", v)
	default:
	}

	probe.online.Store(true)
	monitor.Refresh(context.Background())
	select {
	case v := <-ch:
		assert.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("no notification for the offline-to-online edge")
	}

	probe.online.Store(false)
	monitor.Refresh(context.Background())
	select {
	case v := <-ch:
		assert.False(t, v)
	case <-time.After(time.Second):
		t.Fatal("no notification for the online-to-offline edge")
	}
}

func TestMonitorReplacesStaleNotification(t *testing.T) {
	probe := &boolProbe{}
	monitor := NewMonitorWithProbe(probe.probe, time.Minute)

	ch := monitor.Subscribe()
	defer monitor.Unsubscribe(ch)

	// Two transitions with nobody draining: only the latest survives.
	probe.online.Store(true)
	monitor.Refresh(context.Background())
	probe.online.Store(false)
	monitor.Refresh(context.Background())

	select {
	case v := <-ch:
		assert.False(t, v, "the stale online notification should be replaced")
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}
}

func TestMonitorRunPolls(t *testing.T) {
	probe := &boolProbe{}
	monitor := NewMonitorWithProbe(probe.probe, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	probe.online.Store(true)
	require.Eventually(t, monitor.Online, time.Second, 5*time.Millisecond)

	probe.online.Store(false)
	require.Eventually(t, func() bool { return !monitor.Online() }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestStaticTransitions(t *testing.T) {
	source := NewStatic(false)
	assert.False(t, source.Online())

	ch := source.Subscribe()
	defer source.Unsubscribe(ch)

	// Setting the same state is a no-op.
	source.Set(false)
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification %v without a transition", v)
	default:
	}

	source.Set(true)
	assert.True(t, source.Online())
	select {
	case v := <-ch:
		assert.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("no notification on transition")
	}
}

func TestDialAddress(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "explicit port", url: "http://localhost:8080", want: "localhost:8080"},
		{name: "default http port", url: "http://api.example.com", want: "api.example.com:80"},
		{name: "default https port", url: "https://api.example.com", want: "api.example.com:443"},
		{name: "unparseable", url: "://not-a-url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dialAddress(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
