package domain

// Identity is the verified subject attached to a connection.
// Derived once per connection from a valid token, never persisted.
type Identity struct {
	SubjectID   string
	DisplayName string
}

// Room names a grouping of connections across all processes.
// A room exists only while at least one connection is a member;
// there is no stored Room entity.
type Room string
