package shared

// Actor is the authenticated identity attached to a request. It is resolved
// by the identity layer from an opaque credential and stays immutable for the
// request's lifetime.
type Actor struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// IsZero reports whether no actor was resolved.
func (a Actor) IsZero() bool {
	return a.ID == 0
}
