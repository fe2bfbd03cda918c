// README: Identity reference used for owners, carriers and actors.
package types

// ID is an opaque identity-provider reference (e.g. a Firebase UID).
type ID string

func (id ID) String() string { return string(id) }
