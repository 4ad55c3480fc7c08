package models

import "time"

// Membership is a time-bounded grant of one user's access to one group.
// Existence of the record means access is currently granted; revocation
// deletes the record rather than flipping a flag.
type Membership struct {
	// Username is a display label for the user, synthesized from the user id
	// when the platform handle is unknown.
	Username string `json:"username"`

	// JoinDate is when the admin confirmed the payment.
	JoinDate time.Time `json:"joinDate"`

	// ExpiryDate is when access lapses. Always strictly after JoinDate.
	ExpiryDate time.Time `json:"expiryDate"`

	// IsActive is true from creation until the membership is processed by
	// the expiry sweep.
	IsActive bool `json:"isActive"`
}

// Expired reports whether the membership is active but past its expiry.
func (m *Membership) Expired(now time.Time) bool {
	return m.IsActive && !now.Before(m.ExpiryDate)
}

// ExpiredMembership is one result of an expiry scan: the membership along
// with the (group, user) pair it belongs to.
type ExpiredMembership struct {
	GroupID    int64
	UserID     int64
	Membership *Membership
}
