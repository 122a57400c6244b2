package chat

// EventType enumerates the network events the relay reacts to.
type EventType string

const (
	// FriendReceived is an incoming friend request awaiting acceptance.
	FriendReceived EventType = "friend.receive"
	// FriendConfirmed fires once a friend request completes.
	FriendConfirmed EventType = "friend.confirm"
	// RoomJoin fires when members (possibly including the account itself)
	// are added to a room.
	RoomJoin EventType = "room.join"
	// RoomInvite is an incoming group invitation awaiting acceptance.
	RoomInvite EventType = "room.invite"
	// InboundMessage is a text message addressed to the account.
	InboundMessage EventType = "message"
)

// Event is a single network notification. Only the fields relevant to its
// Type are populated.
type Event struct {
	Type EventType

	// FriendReceived, FriendConfirmed
	Friendship Friendship

	// RoomJoin
	Room     Room
	Invitees []Contact
	Inviter  Contact

	// RoomInvite
	Invitation Invitation

	// InboundMessage
	Talker Contact
	Text   string
}
