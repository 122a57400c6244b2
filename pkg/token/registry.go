// Package token derives and resolves the opaque tokens that address chat
// destinations. Contact tokens are a pure function of the display name and
// are never stored; room tokens are random and persisted in the store.
package token

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chatrelay/pkg/chat"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/store"
)

// ErrNotFound means a token does not resolve to a known destination.
var ErrNotFound = errors.New("token not found")

// Directory is the slice of the network client the registry needs.
type Directory interface {
	FindContactByName(ctx context.Context, name string) (chat.Contact, error)
	Room(id string) chat.Room
}

// Registry resolves tokens to destinations and mints room tokens.
type Registry struct {
	dir Directory
}

// NewRegistry returns a Registry backed by the given directory.
func NewRegistry(dir Directory) *Registry {
	return &Registry{dir: dir}
}

// DeriveContactToken derives the token for a contact display name. Tokens
// travel as URL path segments, so the unpadded URL-safe base64 alphabet is
// used. The token is stable only as long as the contact keeps its name.
func DeriveContactToken(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

// ResolveContactByToken decodes a contact token back to a display name and
// looks the contact up in the live directory. When several contacts share
// the name, the directory's first match wins.
func (r *Registry) ResolveContactByToken(ctx context.Context, tok string) (chat.Contact, error) {
	name, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		// legacy tokens may carry padding
		if name, err = base64.URLEncoding.DecodeString(tok); err != nil {
			return nil, ErrNotFound
		}
	}
	c, err := r.dir.FindContactByName(ctx, string(name))
	if err != nil {
		return nil, fmt.Errorf("directory lookup for %q: %w", string(name), err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// ResolveOrCreateRoomToken returns the token for a (room, inviter) pair,
// minting and persisting a fresh one on first use. Idempotent: the same
// pair always yields the same token, including under concurrent calls.
func (r *Registry) ResolveOrCreateRoomToken(ctx context.Context, roomID, contactID string) (string, error) {
	rec, found, err := store.FindTokenRecord(roomID, contactID)
	if err != nil {
		return "", err
	}
	if found {
		return rec.Token, nil
	}
	rec, created, err := store.CreateTokenRecord(models.TokenRecord{
		RoomID:    roomID,
		ContactID: contactID,
		Token:     uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	if created {
		logger.Info("room_token_minted", "room", roomID, "contact", contactID)
	}
	return rec.Token, nil
}

// ResolveRoomByToken reverse-looks-up a room token and returns a handle
// for the mapped room.
func (r *Registry) ResolveRoomByToken(ctx context.Context, tok string) (chat.Room, error) {
	rec, found, err := store.FindTokenRecordByToken(tok)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return r.dir.Room(rec.RoomID), nil
}
