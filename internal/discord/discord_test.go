package discord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/plant-bridge/internal/services/bridge"
)

type recordingHandler struct {
	mu   sync.Mutex
	reqs []bridge.Request
}

func (h *recordingHandler) Handle(_ context.Context, req bridge.Request) (bridge.Notification, bool) {
	h.mu.Lock()
	h.reqs = append(h.reqs, req)
	h.mu.Unlock()
	return bridge.Notification{}, false
}

func (h *recordingHandler) Prefix() string { return "!" }

func (h *recordingHandler) requests() []bridge.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bridge.Request(nil), h.reqs...)
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Config{}, &recordingHandler{}, zap.NewNop())
	require.Error(t, err)
}

func TestToMessageSend_TextOnly(t *testing.T) {
	ms := ToMessageSend(bridge.Notification{Text: "✅ Pump service enabled"})
	require.Equal(t, "✅ Pump service enabled", ms.Content)
	require.Empty(t, ms.Embeds)
}

func TestToMessageSend_Embed(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	ms := ToMessageSend(bridge.Notification{
		Text: "note",
		Embed: &bridge.Embed{
			Title:     "🌱 Plant Monitor Status",
			Color:     bridge.ColorGreen,
			Fields:    []bridge.EmbedField{{Name: "🌡️ Temperature", Value: "21°C", Inline: true}},
			Footer:    "Last updated",
			Timestamp: at,
		},
	})
	require.Equal(t, "note", ms.Content)
	require.Len(t, ms.Embeds, 1)
	e := ms.Embeds[0]
	require.Equal(t, "🌱 Plant Monitor Status", e.Title)
	require.Equal(t, bridge.ColorGreen, e.Color)
	require.Equal(t, []*discordgo.MessageEmbedField{{Name: "🌡️ Temperature", Value: "21°C", Inline: true}}, e.Fields)
	require.Equal(t, "Last updated", e.Footer.Text)
	require.Equal(t, "2024-06-01T06:30:00Z", e.Timestamp)
}

func TestOnMessageCreate_ParsesCommandsAndIgnoresBots(t *testing.T) {
	h := &recordingHandler{}
	b, err := New(Config{Token: "test-token"}, h, zap.NewNop())
	require.NoError(t, err)
	defer b.cancel()

	msg := func(content string, bot bool) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			ChannelID: "chan-9",
			Content:   content,
			Author:    &discordgo.User{ID: "u1", Bot: bot},
		}}
	}
	b.onMessageCreate(nil, msg("!pump_on", true))
	b.onMessageCreate(nil, msg("hello there", false))
	b.onMessageCreate(nil, msg("!status", false))

	require.Eventually(t, func() bool { return len(h.requests()) == 1 }, time.Second, 5*time.Millisecond)
	req := h.requests()[0]
	require.Equal(t, "status", req.Name)
	require.Equal(t, "chan-9", req.Origin)
}
