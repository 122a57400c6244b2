package token

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"chatrelay/pkg/chat/chattest"
	"chatrelay/pkg/store"
)

func TestDeriveContactToken(t *testing.T) {
	for _, name := range []string{"alice", "Bob Smith", "推送精灵"} {
		want := base64.RawURLEncoding.EncodeToString([]byte(name))
		if got := DeriveContactToken(name); got != want {
			t.Fatalf("DeriveContactToken(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestContactTokenRoundTrip(t *testing.T) {
	client := chattest.NewClient("bot")
	client.AddContact("c1", "alice")
	reg := NewRegistry(client)

	c, err := reg.ResolveContactByToken(context.Background(), DeriveContactToken("alice"))
	if err != nil {
		t.Fatalf("ResolveContactByToken: %v", err)
	}
	if c.Name() != "alice" || c.ID() != "c1" {
		t.Fatalf("unexpected contact: id=%s name=%s", c.ID(), c.Name())
	}
}

func TestResolveContactByTokenUnknown(t *testing.T) {
	reg := NewRegistry(chattest.NewClient("bot"))

	if _, err := reg.ResolveContactByToken(context.Background(), DeriveContactToken("nobody")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// undecodable tokens resolve as unknown rather than as a decode error
	if _, err := reg.ResolveContactByToken(context.Background(), "!!not-base64!!"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for undecodable token, got %v", err)
	}
}

func TestResolveContactFirstMatchWins(t *testing.T) {
	client := chattest.NewClient("bot")
	client.AddContact("c1", "alice")
	client.AddContact("c2", "alice")
	reg := NewRegistry(client)

	c, err := reg.ResolveContactByToken(context.Background(), DeriveContactToken("alice"))
	if err != nil {
		t.Fatalf("ResolveContactByToken: %v", err)
	}
	if c.ID() != "c1" {
		t.Fatalf("expected first directory match c1, got %s", c.ID())
	}
}

func TestRoomTokenResolveOrCreate(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	client := chattest.NewClient("bot")
	client.AddRoom("r1")
	reg := NewRegistry(client)
	ctx := context.Background()

	tok, err := reg.ResolveOrCreateRoomToken(ctx, "r1", "inviter-1")
	if err != nil {
		t.Fatalf("ResolveOrCreateRoomToken: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected non-empty token")
	}

	again, err := reg.ResolveOrCreateRoomToken(ctx, "r1", "inviter-1")
	if err != nil {
		t.Fatalf("ResolveOrCreateRoomToken second: %v", err)
	}
	if again != tok {
		t.Fatalf("token not stable: %s vs %s", again, tok)
	}

	// a different inviter in the same room gets a distinct token
	other, err := reg.ResolveOrCreateRoomToken(ctx, "r1", "inviter-2")
	if err != nil {
		t.Fatalf("ResolveOrCreateRoomToken other: %v", err)
	}
	if other == tok {
		t.Fatalf("expected distinct token per (room, inviter) pair")
	}

	room, err := reg.ResolveRoomByToken(ctx, tok)
	if err != nil {
		t.Fatalf("ResolveRoomByToken: %v", err)
	}
	if room.ID() != "r1" {
		t.Fatalf("expected room r1, got %s", room.ID())
	}

	if _, err := reg.ResolveRoomByToken(ctx, "no-such-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
