package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/plant-bridge/internal/model"
)

const controlTopic = "esp32/control"

func newTestCommands(pub Publisher, cfg CommandsConfig) (*Commands, *StateCache, *Destination) {
	cache := NewStateCache()
	dest := &Destination{}
	cfg.ControlTopic = controlTopic
	return NewCommands(pub, cache, dest, cfg, zap.NewNop(), nil), cache, dest
}

type hangingPublisher struct{}

func (hangingPublisher) Publish(ctx context.Context, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestParseCommand(t *testing.T) {
	req, ok := ParseCommand("!", "  !Status now please ")
	require.True(t, ok)
	require.Equal(t, "status", req.Name)
	require.Equal(t, []string{"now", "please"}, req.Args)

	for _, line := range []string{"status", "!", "!   ", "", "?status"} {
		_, ok := ParseCommand("!", line)
		require.False(t, ok, "line %q", line)
	}
	_, ok = ParseCommand("", "!status")
	require.False(t, ok)
}

func TestPumpCommands_PublishAndConfirm(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		reply   string
	}{
		{CmdPumpOn, "PUMP_ENABLE", "Pump service ENABLED"},
		{CmdPumpOff, "PUMP_DISABLE", "Pump service DISABLED"},
		{CmdWater, "PUMP_ON", "cooldown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &fakePublisher{}
			cmds, cache, dest := newTestCommands(pub, CommandsConfig{})

			n, ok := cmds.Handle(context.Background(), Request{Name: tc.name, Origin: "chan-1"})
			require.True(t, ok)
			require.Contains(t, n.Text, tc.reply)
			require.NotContains(t, n.Text, "⚠️")
			require.Equal(t, []publishCall{{topic: controlTopic, payload: tc.payload}}, pub.published())

			_, bound := dest.Current()
			require.False(t, bound, "only the status command binds the destination")
			require.Zero(t, cache.Version())
		})
	}
}

func TestPumpCommands_PublishFailureStillReplies(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	cmds, _, _ := newTestCommands(pub, CommandsConfig{})

	n := cmds.WaterNow(context.Background())
	require.Contains(t, n.Text, "Manual watering command sent")
	require.Contains(t, n.Text, "⚠️")
	require.Contains(t, n.Text, "not connected")
}

func TestHelpAndUnknown(t *testing.T) {
	cmds, _, _ := newTestCommands(&fakePublisher{}, CommandsConfig{Prefix: "!"})

	n, ok := cmds.Handle(context.Background(), Request{Name: CmdHelp})
	require.True(t, ok)
	require.NotNil(t, n.Embed)
	require.Len(t, n.Embed.Fields, 4)
	require.Equal(t, "!status", n.Embed.Fields[0].Name)

	_, ok = cmds.Handle(context.Background(), Request{Name: "dance"})
	require.False(t, ok)
}

func TestStatus_FreshReplyFromDevice(t *testing.T) {
	pub := &fakePublisher{}
	cmds, cache, dest := newTestCommands(pub, CommandsConfig{StatusWait: 2 * time.Second})
	pub.onPublish = func(_, payload string) {
		if payload == "STATUS" {
			go func() {
				time.Sleep(30 * time.Millisecond)
				cache.Update(model.StatusSnapshot{Temperature: f64(24), SoilState: model.SoilOK, PumpEnabled: true})
			}()
		}
	}

	start := time.Now()
	n := cmds.Status(context.Background(), "chan-7")
	require.Less(t, time.Since(start), time.Second)

	require.NotNil(t, n.Embed)
	require.Empty(t, n.Text)
	require.Equal(t, "24°C", n.Embed.Fields[0].Value)
	require.Equal(t, ColorGreen, n.Embed.Color)
	require.Equal(t, []publishCall{{topic: controlTopic, payload: "STATUS"}}, pub.published())

	d, ok := dest.Current()
	require.True(t, ok)
	require.Equal(t, "chan-7", d)
}

// A reply landing while the publish is still in flight is not missed.
func TestStatus_ReplyDuringPublishIsNotMissed(t *testing.T) {
	pub := &fakePublisher{}
	cmds, cache, _ := newTestCommands(pub, CommandsConfig{StatusWait: 200 * time.Millisecond})
	pub.onPublish = func(_, _ string) {
		cache.Update(model.StatusSnapshot{SoilState: model.SoilWet})
	}

	n := cmds.Status(context.Background(), "chan-1")
	require.NotNil(t, n.Embed)
	require.Empty(t, n.Text)
}

func TestStatus_NoDataYet(t *testing.T) {
	cmds, _, _ := newTestCommands(&fakePublisher{}, CommandsConfig{StatusWait: 80 * time.Millisecond})

	start := time.Now()
	n := cmds.Status(context.Background(), "chan-1")
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	require.Nil(t, n.Embed)
	require.Equal(t, waitingText, n.Text)
}

func TestStatus_StaleSnapshotOnTimeout(t *testing.T) {
	cmds, cache, _ := newTestCommands(&fakePublisher{}, CommandsConfig{StatusWait: 50 * time.Millisecond})
	cache.Update(model.StatusSnapshot{SoilState: model.SoilDry, ReceivedAt: time.Now().Add(-time.Hour)})

	n := cmds.Status(context.Background(), "chan-1")
	require.NotNil(t, n.Embed)
	require.Contains(t, n.Text, "did not answer in time")
	require.Equal(t, ColorOrange, n.Embed.Color)
}

func TestStatus_RecentSnapshotAnswersImmediately(t *testing.T) {
	cmds, cache, _ := newTestCommands(&fakePublisher{}, CommandsConfig{StatusWait: 5 * time.Second, FreshFor: time.Minute})
	cache.Update(model.StatusSnapshot{SoilState: model.SoilOK})

	start := time.Now()
	n := cmds.Status(context.Background(), "chan-1")
	require.Less(t, time.Since(start), time.Second)
	require.NotNil(t, n.Embed)
	require.Empty(t, n.Text)
}

func TestStatus_BoundedWhenBusHangs(t *testing.T) {
	cmds, _, _ := newTestCommands(hangingPublisher{}, CommandsConfig{StatusWait: 100 * time.Millisecond, PublishTimeout: time.Minute})

	start := time.Now()
	n := cmds.Status(context.Background(), "chan-1")
	require.Less(t, time.Since(start), time.Second)
	require.Contains(t, n.Text, waitingText)
	require.Contains(t, n.Text, "⚠️")
}

// Two status commands without a device answer time out independently.
func TestStatus_ConcurrentQueriesDoNotShareWaitState(t *testing.T) {
	const wait = 150 * time.Millisecond
	cmds, _, dest := newTestCommands(&fakePublisher{}, CommandsConfig{StatusWait: wait})

	var wg sync.WaitGroup
	elapsed := make([]time.Duration, 2)
	replies := make([]Notification, 2)
	for i, origin := range []string{"chan-a", "chan-b"} {
		wg.Add(1)
		go func(i int, origin string) {
			defer wg.Done()
			if i == 1 {
				time.Sleep(wait / 2)
			}
			start := time.Now()
			replies[i] = cmds.Status(context.Background(), origin)
			elapsed[i] = time.Since(start)
		}(i, origin)
	}
	wg.Wait()

	for i := range elapsed {
		require.GreaterOrEqual(t, elapsed[i], wait, "query %d", i)
		require.Less(t, elapsed[i], wait+time.Second, "query %d", i)
		require.Equal(t, waitingText, replies[i].Text)
	}
	d, _ := dest.Current()
	require.Equal(t, "chan-b", d, "last status command wins the destination")
}
