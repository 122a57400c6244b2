// Package chattest provides an in-memory chat.Client for tests, so
// automation and gateway behavior can be exercised without a bridge.
package chattest

import (
	"context"
	"sync"

	"chatrelay/pkg/chat"
)

// Said records one delivered message.
type Said struct {
	DestID  string
	Content chat.Content
}

// Client is an in-memory chat.Client. Contacts and rooms are registered
// up front; every Say is recorded.
type Client struct {
	mu       sync.Mutex
	selfID   string
	contacts []*Contact
	rooms    map[string]*Room
	events   chan chat.Event
	said     []Said
	sayErr   error
}

// NewClient returns a fake client whose account id is selfID.
func NewClient(selfID string) *Client {
	return &Client{
		selfID: selfID,
		rooms:  map[string]*Room{},
		events: make(chan chat.Event, 16),
	}
}

func (c *Client) Self() string { return c.selfID }

// AddContact registers a contact and returns it. Registration order
// defines directory match order for duplicate names.
func (c *Client) AddContact(id, name string) *Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	ct := &Contact{client: c, id: id, name: name}
	c.contacts = append(c.contacts, ct)
	return ct
}

// AddRoom registers a room and returns it.
func (c *Client) AddRoom(id string) *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	rm := &Room{client: c, id: id}
	c.rooms[id] = rm
	return rm
}

func (c *Client) FindContactByName(_ context.Context, name string) (chat.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ct := range c.contacts {
		if ct.name == name {
			return ct, nil
		}
	}
	return nil, nil
}

func (c *Client) Room(id string) chat.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rm, ok := c.rooms[id]; ok {
		return rm
	}
	rm := &Room{client: c, id: id}
	c.rooms[id] = rm
	return rm
}

func (c *Client) Events() <-chan chat.Event { return c.events }

// Emit pushes an event into the stream.
func (c *Client) Emit(ev chat.Event) { c.events <- ev }

// CloseEvents ends the stream, as a dropped bridge connection would.
func (c *Client) CloseEvents() { close(c.events) }

func (c *Client) Close() error { return nil }

// SetSayErr makes every subsequent Say fail with err (nil restores
// normal delivery).
func (c *Client) SetSayErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sayErr = err
}

func (c *Client) record(destID string, content chat.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sayErr != nil {
		return c.sayErr
	}
	c.said = append(c.said, Said{DestID: destID, Content: content})
	return nil
}

// Said returns a copy of everything delivered so far.
func (c *Client) SaidMessages() []Said {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Said(nil), c.said...)
}

// SaidTo returns the messages delivered to one destination.
func (c *Client) SaidTo(destID string) []Said {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Said
	for _, s := range c.said {
		if s.DestID == destID {
			out = append(out, s)
		}
	}
	return out
}

// Contact is a fake chat.Contact.
type Contact struct {
	client *Client
	id     string
	name   string
}

func (c *Contact) ID() string   { return c.id }
func (c *Contact) Name() string { return c.name }
func (c *Contact) Say(_ context.Context, content chat.Content) error {
	return c.client.record(c.id, content)
}

// Room is a fake chat.Room.
type Room struct {
	client *Client
	id     string
}

func (r *Room) ID() string { return r.id }
func (r *Room) Say(_ context.Context, content chat.Content) error {
	return r.client.record(r.id, content)
}

// Friendship is a fake chat.Friendship recording Accept calls.
type Friendship struct {
	mu       sync.Mutex
	contact  chat.Contact
	accepted int
	// AcceptErr, when set, is returned by Accept.
	AcceptErr error
}

// NewFriendship wraps a contact in a pending friendship.
func NewFriendship(c chat.Contact) *Friendship {
	return &Friendship{contact: c}
}

func (f *Friendship) Contact() chat.Contact { return f.contact }

func (f *Friendship) Accept(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AcceptErr != nil {
		return f.AcceptErr
	}
	f.accepted++
	return nil
}

// Accepted reports how many times Accept succeeded.
func (f *Friendship) Accepted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted
}

// Invitation is a fake chat.Invitation recording Accept calls.
type Invitation struct {
	mu       sync.Mutex
	accepted int
}

func (i *Invitation) Accept(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.accepted++
	return nil
}

// Accepted reports how many times Accept was called.
func (i *Invitation) Accepted() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.accepted
}
