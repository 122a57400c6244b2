package bridge

import (
	"context"
	"encoding/json"

	"chatrelay/pkg/chat"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
)

// wireMessage is one frame of the bridge protocol.
type wireMessage struct {
	Type    string          `json:"type"` // "req", "res" or "event"
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sayParams struct {
	Kind  string       `json:"kind"` // "contact" or "room"
	ID    string       `json:"id"`
	Text  string       `json:"text,omitempty"`
	Media *mediaParams `json:"media,omitempty"`
}

type mediaParams struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// decodeEvent maps a pushed bridge event onto the typed chat.Event set.
func (c *Client) decodeEvent(msg wireMessage) (chat.Event, bool) {
	switch msg.Event {
	case "friendship":
		var p struct {
			Phase   string         `json:"phase"` // "receive" or "confirm"
			ID      string         `json:"id"`
			Contact models.Contact `json:"contact"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		f := &bridgeFriendship{
			c:       c,
			id:      p.ID,
			contact: &bridgeContact{c: c, id: p.Contact.ID, name: p.Contact.Name},
		}
		switch p.Phase {
		case "receive":
			return chat.Event{Type: chat.FriendReceived, Friendship: f}, true
		case "confirm":
			return chat.Event{Type: chat.FriendConfirmed, Friendship: f}, true
		}
	case "room.join":
		var p struct {
			RoomID   string           `json:"room_id"`
			Inviter  models.Contact   `json:"inviter"`
			Invitees []models.Contact `json:"invitees"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		invitees := make([]chat.Contact, 0, len(p.Invitees))
		for _, inv := range p.Invitees {
			invitees = append(invitees, &bridgeContact{c: c, id: inv.ID, name: inv.Name})
		}
		return chat.Event{
			Type:     chat.RoomJoin,
			Room:     &bridgeRoom{c: c, id: p.RoomID},
			Inviter:  &bridgeContact{c: c, id: p.Inviter.ID, name: p.Inviter.Name},
			Invitees: invitees,
		}, true
	case "room.invite":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		return chat.Event{Type: chat.RoomInvite, Invitation: &bridgeInvitation{c: c, id: p.ID}}, true
	case "message":
		var p struct {
			Talker models.Contact `json:"talker"`
			Text   string         `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		return chat.Event{
			Type:   chat.InboundMessage,
			Talker: &bridgeContact{c: c, id: p.Talker.ID, name: p.Talker.Name},
			Text:   p.Text,
		}, true
	}
	logger.Debug("bridge_event_ignored", "event", msg.Event)
	return chat.Event{}, false
}

type bridgeContact struct {
	c    *Client
	id   string
	name string
}

func (b *bridgeContact) ID() string   { return b.id }
func (b *bridgeContact) Name() string { return b.name }
func (b *bridgeContact) Say(ctx context.Context, content chat.Content) error {
	return b.c.say(ctx, "contact", b.id, content)
}

type bridgeRoom struct {
	c  *Client
	id string
}

func (b *bridgeRoom) ID() string { return b.id }
func (b *bridgeRoom) Say(ctx context.Context, content chat.Content) error {
	return b.c.say(ctx, "room", b.id, content)
}

type bridgeFriendship struct {
	c       *Client
	id      string
	contact chat.Contact
}

func (b *bridgeFriendship) Contact() chat.Contact { return b.contact }
func (b *bridgeFriendship) Accept(ctx context.Context) error {
	return b.c.call(ctx, "friendship.accept", map[string]string{"id": b.id}, nil)
}

type bridgeInvitation struct {
	c  *Client
	id string
}

func (b *bridgeInvitation) Accept(ctx context.Context) error {
	return b.c.call(ctx, "invitation.accept", map[string]string{"id": b.id}, nil)
}
