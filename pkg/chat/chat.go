// Package chat defines the contracts the relay consumes from the
// messaging network. The concrete transport (see bridge) is external to
// the relay core; handlers and the gateway only see these interfaces.
package chat

import "context"

// Content is a message payload deliverable to a destination.
type Content interface{ content() }

// Text is a plain text message.
type Text string

func (Text) content() {}

// Media is a typed media message fetched by URL, e.g. an image attachment.
type Media struct {
	Type string
	URL  string
}

func (Media) content() {}

// Sendable is a destination capable of receiving a message. Contacts and
// rooms both satisfy it.
type Sendable interface {
	ID() string
	Say(ctx context.Context, c Content) error
}

// Contact is a person on the network.
type Contact interface {
	Sendable
	Name() string
}

// Room is a group chat on the network.
type Room interface {
	Sendable
}

// Friendship is a pending or confirmed friend relationship request.
type Friendship interface {
	Contact() Contact
	Accept(ctx context.Context) error
}

// Invitation is a pending group invitation.
type Invitation interface {
	Accept(ctx context.Context) error
}

// Client is the messaging-network session the relay drives. Events blocks
// until the session ends; the channel is closed when the underlying
// transport goes away.
type Client interface {
	// Self returns the contact id of the logged-in account.
	Self() string
	// FindContactByName queries the live contact directory. It returns
	// (nil, nil) when no contact matches. When several contacts share a
	// name the first match wins; which one is first is transport-defined.
	FindContactByName(ctx context.Context, name string) (Contact, error)
	// Room returns a handle for a known room id.
	Room(id string) Room
	Events() <-chan Event
	Close() error
}
