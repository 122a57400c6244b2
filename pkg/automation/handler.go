// Package automation reacts to network events: it auto-accepts friend
// requests and group invitations, and announces webhook URLs as new
// relationships form.
package automation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"chatrelay/pkg/chat"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/token"
)

// Config holds the automation behavior knobs.
type Config struct {
	// Domain is the public base URL advertised in webhook announcements.
	Domain string
	// Commands trigger a webhook announcement when received as a message.
	Commands []string
	// Announcement is posted to a room right after the account joins it.
	Announcement string
	// AcceptDelayMin/Max bound the randomized pause before accepting a
	// friend request. The pause is a courtesy toward anti-automation
	// heuristics on the network side, not a correctness requirement.
	AcceptDelayMin time.Duration
	AcceptDelayMax time.Duration
	// SendTimeout bounds every outbound say.
	SendTimeout time.Duration
}

// Handler routes network events to their automation actions.
type Handler struct {
	client   chat.Client
	tokens   *token.Registry
	cfg      Config
	commands map[string]struct{}
}

// New returns a Handler. Zero config fields fall back to package defaults.
func New(client chat.Client, tokens *token.Registry, cfg Config) *Handler {
	if len(cfg.Commands) == 0 {
		cfg.Commands = append([]string{}, config.DefaultCommands...)
	}
	if cfg.Announcement == "" {
		cfg.Announcement = config.DefaultAnnouncement
	}
	if cfg.AcceptDelayMin <= 0 {
		cfg.AcceptDelayMin = config.DefaultDelayMin
	}
	if cfg.AcceptDelayMax < cfg.AcceptDelayMin {
		cfg.AcceptDelayMax = cfg.AcceptDelayMin
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = config.DefaultSendTimeout
	}
	cmds := make(map[string]struct{}, len(cfg.Commands))
	for _, c := range cfg.Commands {
		cmds[c] = struct{}{}
	}
	return &Handler{client: client, tokens: tokens, cfg: cfg, commands: cmds}
}

// Run consumes the client's event stream until ctx is canceled or the
// stream closes. Handler failures are logged and never end the loop.
func (h *Handler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.client.Events():
			if !ok {
				logger.Warn("event_stream_closed")
				return
			}
			h.dispatch(ctx, ev)
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, ev chat.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event_handler_panic", "type", string(ev.Type), "panic", r)
			eventsTotal.WithLabelValues(string(ev.Type), "panic").Inc()
		}
	}()
	if err := h.Handle(ctx, ev); err != nil {
		logger.Error("event_handler_failed", "type", string(ev.Type), "error", err)
		eventsTotal.WithLabelValues(string(ev.Type), "error").Inc()
		return
	}
	eventsTotal.WithLabelValues(string(ev.Type), "ok").Inc()
}

// Handle routes a single event. Exposed so tests can synthesize events
// without a live network connection.
func (h *Handler) Handle(ctx context.Context, ev chat.Event) error {
	switch ev.Type {
	case chat.FriendReceived:
		return h.acceptFriend(ctx, ev.Friendship)
	case chat.FriendConfirmed:
		return h.announceContactWebhook(ctx, ev.Friendship.Contact())
	case chat.RoomJoin:
		return h.handleRoomJoin(ctx, ev)
	case chat.RoomInvite:
		return ev.Invitation.Accept(ctx)
	case chat.InboundMessage:
		if _, ok := h.commands[ev.Text]; ok {
			return h.announceContactWebhook(ctx, ev.Talker)
		}
		return nil
	default:
		logger.Warn("event_unknown", "type", string(ev.Type))
		return nil
	}
}

// acceptFriend waits a randomized delay, then accepts unconditionally.
func (h *Handler) acceptFriend(ctx context.Context, f chat.Friendship) error {
	delay := h.cfg.AcceptDelayMin
	if span := h.cfg.AcceptDelayMax - h.cfg.AcceptDelayMin; span > 0 {
		delay += rand.N(span)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}
	return f.Accept(ctx)
}

// announceContactWebhook derives the contact's token and sends the webhook
// URL template as a private text message.
func (h *Handler) announceContactWebhook(ctx context.Context, c chat.Contact) error {
	tok := token.DeriveContactToken(c.Name())
	text := fmt.Sprintf("%s/send/%s?msg=xxx", h.cfg.Domain, tok)
	if err := h.say(ctx, c, chat.Text(text)); err != nil {
		return fmt.Errorf("announce contact webhook: %w", err)
	}
	logger.Info("contact_webhook_announced", "contact", c.ID())
	return nil
}

// handleRoomJoin announces in the room and hands the inviter a room
// webhook whenever the account itself was added. Other invitees are not
// the relay's concern.
func (h *Handler) handleRoomJoin(ctx context.Context, ev chat.Event) error {
	for _, invitee := range ev.Invitees {
		if invitee.ID() != h.client.Self() {
			continue
		}
		if err := h.say(ctx, ev.Room, chat.Text(h.cfg.Announcement)); err != nil {
			return fmt.Errorf("room announcement: %w", err)
		}
		tok, err := h.tokens.ResolveOrCreateRoomToken(ctx, ev.Room.ID(), ev.Inviter.ID())
		if err != nil {
			return fmt.Errorf("room token: %w", err)
		}
		text := fmt.Sprintf("%s/room/%s?msg=xxx", h.cfg.Domain, tok)
		if err := h.say(ctx, ev.Inviter, chat.Text(text)); err != nil {
			return fmt.Errorf("announce room webhook: %w", err)
		}
		logger.Info("room_webhook_announced", "room", ev.Room.ID(), "inviter", ev.Inviter.ID())
	}
	return nil
}

func (h *Handler) say(ctx context.Context, dst chat.Sendable, c chat.Content) error {
	sctx, cancel := context.WithTimeout(ctx, h.cfg.SendTimeout)
	defer cancel()
	return dst.Say(sctx, c)
}
