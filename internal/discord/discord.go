// Package discord connects the bridge commands and notifications to a Discord bot.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/plant-bridge/internal/services/bridge"
)

// CommandHandler runs a parsed chat command and returns the reply.
type CommandHandler interface {
	Handle(ctx context.Context, req bridge.Request) (bridge.Notification, bool)
	Prefix() string
}

type Config struct {
	Token string
	// CommandTimeout bounds one command including its reply.
	CommandTimeout time.Duration
}

// Bot is the Discord side of the bridge. It implements bridge.Sink.
type Bot struct {
	session  *discordgo.Session
	handler  CommandHandler
	cfg      Config
	log      *zap.Logger
	ready    atomic.Bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	removeFn []func()
}

var _ bridge.Sink = (*Bot)(nil)

func New(cfg Config, handler CommandHandler, log *zap.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord token is empty")
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{session: s, handler: handler, cfg: cfg, log: log, baseCtx: ctx, cancel: cancel}
	b.removeFn = append(b.removeFn,
		s.AddHandler(b.onReady),
		s.AddHandler(b.onDisconnect),
		s.AddHandler(b.onMessageCreate),
	)
	return b, nil
}

// Open connects the gateway websocket.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close cancels running commands and disconnects.
func (b *Bot) Close() error {
	b.cancel()
	for _, rm := range b.removeFn {
		rm()
	}
	b.ready.Store(false)
	return b.session.Close()
}

// IsConnected reports whether the gateway session is ready.
func (b *Bot) IsConnected() bool {
	return b.ready.Load()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	b.log.Info("connected to Discord", zap.String("user", r.User.Username))
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	b.ready.Store(false)
	b.log.Warn("disconnected from Discord")
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	req, ok := bridge.ParseCommand(b.handler.Prefix(), m.Content)
	if !ok {
		return
	}
	req.Origin = m.ChannelID
	// commands wait on the device; keep the gateway event loop free
	go b.dispatch(req)
}

func (b *Bot) dispatch(req bridge.Request) {
	ctx, cancel := context.WithTimeout(b.baseCtx, b.cfg.CommandTimeout)
	defer cancel()

	log := b.log.With(zap.String("command", req.Name), zap.String("channel", req.Origin))
	reply, ok := b.handler.Handle(ctx, req)
	if !ok {
		log.Debug("unknown command")
		return
	}
	if err := b.Send(ctx, req.Origin, reply); err != nil {
		log.Warn("reply failed", zap.Error(err))
	}
}

// Send posts n to channelID.
func (b *Bot) Send(ctx context.Context, channelID string, n bridge.Notification) error {
	if _, err := b.session.ChannelMessageSendComplex(channelID, ToMessageSend(n), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return nil
}

// ToMessageSend converts a notification to a Discord message.
func ToMessageSend(n bridge.Notification) *discordgo.MessageSend {
	ms := &discordgo.MessageSend{Content: n.Text}
	if n.Embed == nil {
		return ms
	}
	e := &discordgo.MessageEmbed{
		Title:       n.Embed.Title,
		Description: n.Embed.Description,
		Color:       n.Embed.Color,
	}
	for _, f := range n.Embed.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if n.Embed.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: n.Embed.Footer}
	}
	if !n.Embed.Timestamp.IsZero() {
		e.Timestamp = n.Embed.Timestamp.UTC().Format(time.RFC3339)
	}
	ms.Embeds = []*discordgo.MessageEmbed{e}
	return ms
}
