package models

// Contact is a person on the messaging network. ID is the network
// identity key; Name is the human-assigned display name and is the lookup
// key for contact tokens.
type Contact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is a group chat on the messaging network.
type Room struct {
	ID string `json:"id"`
}

// TokenRecord maps an opaque room token to its destination. One record
// exists per (RoomID, ContactID) pair; records are immutable and never
// deleted once written.
type TokenRecord struct {
	RoomID    string `json:"room_id"`
	ContactID string `json:"contact_id"`
	Token     string `json:"token"`
	CreatedTS int64  `json:"created_ts"`
}
