package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_ClosesInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(context.Background(), time.Second, nil)

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		sm.RegisterCloser(CloserFunc(func() error {
			order = append(order, i)
			return nil
		}))
	}

	require.NoError(t, sm.Shutdown("test"))
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.Error(t, sm.Context().Err())
	assert.True(t, sm.IsShuttingDown())
}

func TestShutdownManager_OnlyOnce(t *testing.T) {
	sm := NewShutdownManager(context.Background(), time.Second, nil)

	calls := 0
	sm.RegisterCloser(CloserFunc(func() error {
		calls++
		return errors.New("close failed")
	}))

	assert.Error(t, sm.Shutdown("first"))
	assert.NoError(t, sm.Shutdown("second"))
	assert.Equal(t, 1, calls)
}

func TestShutdownManager_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sm := NewShutdownManager(parent, time.Second, nil)
	defer sm.Shutdown("cleanup")

	assert.False(t, sm.IsShuttingDown())
	cancel()
	assert.True(t, sm.IsShuttingDown())
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(context.Background(), 20*time.Millisecond, nil)
	block := make(chan struct{})
	defer close(block)
	sm.RegisterCloser(CloserFunc(func() error {
		<-block
		return nil
	}))

	err := sm.Shutdown("test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestMetricsServer_HealthAndMetrics(t *testing.T) {
	sm := NewShutdownManager(context.Background(), time.Second, nil)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("activitysink_events_submitted_total 1\n"))
	})
	ms := NewMetricsServer("127.0.0.1:0", metrics, sm)
	require.NoError(t, ms.Start())

	resp, err := http.Get("http://" + ms.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + ms.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "events_submitted_total")

	require.NoError(t, sm.Shutdown("test"))

	_, err = http.Get("http://" + ms.Addr() + "/health")
	assert.Error(t, err)
}
