package automation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chatrelay/pkg/chat"
	"chatrelay/pkg/chat/chattest"
	"chatrelay/pkg/store"
	"chatrelay/pkg/token"
)

func newTestHandler(t *testing.T, client *chattest.Client) *Handler {
	t.Helper()
	return New(client, token.NewRegistry(client), Config{
		Domain:         "https://relay.test",
		AcceptDelayMin: time.Millisecond,
		AcceptDelayMax: 5 * time.Millisecond,
		SendTimeout:    time.Second,
	})
}

func openTestStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestFriendRequestAutoAccepted(t *testing.T) {
	client := chattest.NewClient("bot")
	alice := client.AddContact("c1", "alice")
	h := New(client, token.NewRegistry(client), Config{
		Domain:         "https://relay.test",
		AcceptDelayMin: 20 * time.Millisecond,
		AcceptDelayMax: 40 * time.Millisecond,
	})

	f := chattest.NewFriendship(alice)
	start := time.Now()
	if err := h.Handle(context.Background(), chat.Event{Type: chat.FriendReceived, Friendship: f}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if f.Accepted() != 1 {
		t.Fatalf("expected one accept, got %d", f.Accepted())
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("accept fired before the minimum delay: %v", elapsed)
	}
}

func TestFriendRequestAcceptCanceled(t *testing.T) {
	client := chattest.NewClient("bot")
	alice := client.AddContact("c1", "alice")
	h := New(client, token.NewRegistry(client), Config{
		AcceptDelayMin: time.Minute,
		AcceptDelayMax: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := chattest.NewFriendship(alice)
	if err := h.Handle(ctx, chat.Event{Type: chat.FriendReceived, Friendship: f}); err == nil {
		t.Fatalf("expected context error")
	}
	if f.Accepted() != 0 {
		t.Fatalf("accept must not fire after cancellation")
	}
}

func TestFriendConfirmedAnnouncesWebhook(t *testing.T) {
	client := chattest.NewClient("bot")
	alice := client.AddContact("c1", "alice")
	h := newTestHandler(t, client)

	f := chattest.NewFriendship(alice)
	if err := h.Handle(context.Background(), chat.Event{Type: chat.FriendConfirmed, Friendship: f}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	said := client.SaidTo("c1")
	if len(said) != 1 {
		t.Fatalf("expected one message to alice, got %d", len(said))
	}
	text, ok := said[0].Content.(chat.Text)
	if !ok {
		t.Fatalf("expected text content, got %T", said[0].Content)
	}
	want := "https://relay.test/send/" + token.DeriveContactToken("alice") + "?msg=xxx"
	if string(text) != want {
		t.Fatalf("announcement = %q, want %q", text, want)
	}
}

func TestRoomJoinSelfInvitee(t *testing.T) {
	openTestStore(t)
	client := chattest.NewClient("bot")
	self := client.AddContact("bot", "relay")
	inviter := client.AddContact("inv1", "owner")
	room := client.AddRoom("r1")
	h := newTestHandler(t, client)

	ev := chat.Event{
		Type:     chat.RoomJoin,
		Room:     room,
		Inviter:  inviter,
		Invitees: []chat.Contact{self},
	}
	if err := h.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	roomSaid := client.SaidTo("r1")
	if len(roomSaid) != 1 {
		t.Fatalf("expected one room announcement, got %d", len(roomSaid))
	}

	invSaid := client.SaidTo("inv1")
	if len(invSaid) != 1 {
		t.Fatalf("expected one inviter DM, got %d", len(invSaid))
	}
	text := string(invSaid[0].Content.(chat.Text))
	if !strings.HasPrefix(text, "https://relay.test/room/") || !strings.HasSuffix(text, "?msg=xxx") {
		t.Fatalf("unexpected inviter DM: %q", text)
	}

	// the announced token must match the registry's stored one
	tok, err := token.NewRegistry(client).ResolveOrCreateRoomToken(context.Background(), "r1", "inv1")
	if err != nil {
		t.Fatalf("ResolveOrCreateRoomToken: %v", err)
	}
	if !strings.Contains(text, tok) {
		t.Fatalf("DM %q does not carry stored token %s", text, tok)
	}
}

func TestRoomJoinOtherInvitee(t *testing.T) {
	openTestStore(t)
	client := chattest.NewClient("bot")
	stranger := client.AddContact("s1", "stranger")
	inviter := client.AddContact("inv1", "owner")
	room := client.AddRoom("r1")
	h := newTestHandler(t, client)

	ev := chat.Event{
		Type:     chat.RoomJoin,
		Room:     room,
		Inviter:  inviter,
		Invitees: []chat.Contact{stranger},
	}
	if err := h.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if said := client.SaidMessages(); len(said) != 0 {
		t.Fatalf("expected no sends for non-self invitee, got %d", len(said))
	}
}

func TestRoomInviteAccepted(t *testing.T) {
	client := chattest.NewClient("bot")
	h := newTestHandler(t, client)

	inv := &chattest.Invitation{}
	if err := h.Handle(context.Background(), chat.Event{Type: chat.RoomInvite, Invitation: inv}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if inv.Accepted() != 1 {
		t.Fatalf("expected one accept, got %d", inv.Accepted())
	}
}

func TestInboundCommandMessage(t *testing.T) {
	client := chattest.NewClient("bot")
	alice := client.AddContact("c1", "alice")
	h := newTestHandler(t, client)
	ctx := context.Background()

	for _, cmd := range []string{"webhook", "推送地址"} {
		if err := h.Handle(ctx, chat.Event{Type: chat.InboundMessage, Talker: alice, Text: cmd}); err != nil {
			t.Fatalf("Handle(%q): %v", cmd, err)
		}
	}
	if got := len(client.SaidTo("c1")); got != 2 {
		t.Fatalf("expected 2 webhook announcements, got %d", got)
	}

	if err := h.Handle(ctx, chat.Event{Type: chat.InboundMessage, Talker: alice, Text: "hello"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := len(client.SaidTo("c1")); got != 2 {
		t.Fatalf("non-command text must not trigger an announcement, got %d sends", got)
	}
}

func TestRunSurvivesHandlerFailure(t *testing.T) {
	client := chattest.NewClient("bot")
	alice := client.AddContact("c1", "alice")
	h := newTestHandler(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	client.SetSayErr(errors.New("transport down"))
	f := chattest.NewFriendship(alice)
	client.Emit(chat.Event{Type: chat.FriendConfirmed, Friendship: f})

	client.SetSayErr(nil)
	client.Emit(chat.Event{Type: chat.InboundMessage, Talker: alice, Text: "webhook"})

	deadline := time.After(2 * time.Second)
	for len(client.SaidTo("c1")) == 0 {
		select {
		case <-deadline:
			t.Fatalf("event loop did not survive the failed handler")
		case <-time.After(5 * time.Millisecond):
		}
	}

	client.CloseEvents()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after the event stream closed")
	}
}
