package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifier_DropsWhenUnbound(t *testing.T) {
	sink := &fakeSink{}
	m := NewMetrics(nil)
	n := NewNotifier(sink, &Destination{}, NotifierConfig{}, zap.NewNop(), m)

	err := n.Notify(Notification{Text: "hello"})
	require.ErrorIs(t, err, ErrNoDestination)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(resultUnbound)))
}

func TestNotifier_DeliversToBoundDestination(t *testing.T) {
	sink := &fakeSink{}
	dest := &Destination{}
	dest.Bind("chan-1")
	n := NewNotifier(sink, dest, NotifierConfig{}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	require.NoError(t, n.Notify(Notification{Text: "hello"}))
	require.Eventually(t, func() bool { return len(sink.messages()) == 1 }, time.Second, 5*time.Millisecond)
	got := sink.messages()[0]
	require.Equal(t, "chan-1", got.dest)
	require.Equal(t, "hello", got.n.Text)
}

func TestNotifier_NotifyNeverBlocks(t *testing.T) {
	sink := &fakeSink{}
	dest := &Destination{}
	dest.Bind("chan-1")
	m := NewMetrics(nil)
	n := NewNotifier(sink, dest, NotifierConfig{QueueSize: 2}, zap.NewNop(), m)
	// no dispatcher running: the queue fills up

	errs := make(chan error, 3)
	go func() {
		for _, text := range []string{"1", "2", "3"} {
			errs <- n.Notify(Notification{Text: text})
		}
	}()
	for i, want := range []error{nil, nil, ErrQueueFull} {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, want, "notify %d", i)
		case <-time.After(time.Second):
			t.Fatal("Notify blocked")
		}
	}
	require.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(resultQueueFull)))
}

func TestNotifier_SlowSinkIsBoundedBySendTimeout(t *testing.T) {
	sink := &fakeSink{block: true}
	dest := &Destination{}
	dest.Bind("chan-1")
	m := NewMetrics(nil)
	n := NewNotifier(sink, dest, NotifierConfig{SendTimeout: 20 * time.Millisecond, BreakerFailures: 100}, zap.NewNop(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	require.NoError(t, n.Notify(Notification{Text: "1"}))
	require.NoError(t, n.Notify(Notification{Text: "2"}))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Notifications.WithLabelValues(resultFailed)) == 2
	}, time.Second, 5*time.Millisecond)
	require.Less(t, n.LastErrorAge(), time.Second)
}

func TestNotifier_BreakerOpensAfterFailures(t *testing.T) {
	sink := &fakeSink{err: errors.New("unknown channel")}
	dest := &Destination{}
	dest.Bind("chan-1")
	m := NewMetrics(nil)
	n := NewNotifier(sink, dest, NotifierConfig{BreakerFailures: 2, BreakerOpenFor: time.Minute}, zap.NewNop(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	for i := 0; i < 4; i++ {
		require.NoError(t, n.Notify(Notification{Text: "x"}))
	}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Notifications.WithLabelValues(resultBreakerOpen)) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, sink.callCount(), "open breaker must not reach the sink")
	require.Equal(t, gobreaker.StateOpen, n.BreakerState())
}
