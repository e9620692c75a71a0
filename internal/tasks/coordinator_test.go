package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovDV72toru/alice/internal/registry"
)

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := []Option{
		WithWorkers(2),
		WithRetryPolicy(3, 5*time.Millisecond),
	}
	c := NewCoordinator(client, nil, append(base, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		c.Wait()
	})
	return c, func() { c.Start(ctx) }
}

func TestSubmitAndAwait_Ready(t *testing.T) {
	c, start := newTestCoordinator(t)
	c.Register(KindFindPatient, func(_ context.Context, payload json.RawMessage) (any, error) {
		var in map[string]string
		require.NoError(t, json.Unmarshal(payload, &in))
		return map[string]string{"patient_id": "PAT-" + in["last_name"]}, nil
	})
	start()

	handle, err := c.Submit(context.Background(), KindFindPatient, map[string]string{"last_name": "Иванов"})
	require.NoError(t, err)

	res, ready, err := c.AwaitOrDefer(context.Background(), handle, time.Second)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, StatusReady, res.Status)

	var out map[string]string
	require.NoError(t, res.Decode(&out))
	assert.Equal(t, "PAT-Иванов", out["patient_id"])
}

func TestAwaitOrDefer_DefersThenPollSucceeds(t *testing.T) {
	c, start := newTestCoordinator(t)
	release := make(chan struct{})
	c.Register(KindCreateAppointment, func(_ context.Context, _ json.RawMessage) (any, error) {
		<-release
		return registry.BookingResult{Status: registry.BookingSuccess, BookID: "BK-1"}, nil
	})
	start()

	handle, err := c.Submit(context.Background(), KindCreateAppointment, nil)
	require.NoError(t, err)

	res, ready, err := c.AwaitOrDefer(context.Background(), handle, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready, "a slow task must defer, not block the turn")
	assert.Equal(t, StatusPending, res.Status)

	close(release)
	require.Eventually(t, func() bool {
		res, err := c.Poll(context.Background(), handle)
		return err == nil && res.Status == StatusReady
	}, time.Second, 5*time.Millisecond)

	// Polling a terminal result is idempotent.
	first, err := c.Poll(context.Background(), handle)
	require.NoError(t, err)
	second, err := c.Poll(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExecute_RetriesTransientFailures(t *testing.T) {
	c, start := newTestCoordinator(t)
	var calls atomic.Int32
	c.Register(KindListFacilities, func(_ context.Context, _ json.RawMessage) (any, error) {
		if calls.Add(1) < 3 {
			return nil, registry.Transient(errors.New("gateway timeout"))
		}
		return []string{"поликлиника №8"}, nil
	})
	start()

	handle, err := c.Submit(context.Background(), KindListFacilities, nil)
	require.NoError(t, err)

	res, ready, err := c.AwaitOrDefer(context.Background(), handle, time.Second)
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_ExhaustsRetries(t *testing.T) {
	c, start := newTestCoordinator(t)
	var calls atomic.Int32
	c.Register(KindListFacilities, func(_ context.Context, _ json.RawMessage) (any, error) {
		calls.Add(1)
		return nil, registry.Transient(errors.New("still down"))
	})
	start()

	handle, err := c.Submit(context.Background(), KindListFacilities, nil)
	require.NoError(t, err)

	res, ready, err := c.AwaitOrDefer(context.Background(), handle, time.Second)
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Err, "still down")
	assert.Equal(t, int32(3), calls.Load(), "three attempts, then give up")
}

func TestExecute_TerminalErrorIsNotRetried(t *testing.T) {
	c, start := newTestCoordinator(t)
	var calls atomic.Int32
	c.Register(KindFindPatient, func(_ context.Context, _ json.RawMessage) (any, error) {
		calls.Add(1)
		return nil, errors.New("malformed response")
	})
	start()

	handle, err := c.Submit(context.Background(), KindFindPatient, nil)
	require.NoError(t, err)

	res, ready, err := c.AwaitOrDefer(context.Background(), handle, time.Second)
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForget_DropsResult(t *testing.T) {
	c, start := newTestCoordinator(t)
	c.Register(KindListFacilities, func(_ context.Context, _ json.RawMessage) (any, error) {
		return "ignored", nil
	})
	start()

	handle, err := c.Submit(context.Background(), KindListFacilities, nil)
	require.NoError(t, err)

	_, _, err = c.AwaitOrDefer(context.Background(), handle, time.Second)
	require.NoError(t, err)

	require.NoError(t, c.Forget(context.Background(), handle))
	_, err = c.Poll(context.Background(), handle)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestPoll_UnknownHandle(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, err := c.Poll(context.Background(), "never-existed")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestSubmit_UnregisteredKind(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, err := c.Submit(context.Background(), Kind("nope"), nil)
	require.Error(t, err)
}

func TestDecode_RejectsNonReady(t *testing.T) {
	res := Result{Status: StatusFailed, Err: "boom"}
	var out string
	assert.Error(t, res.Decode(&out))
}
