package model

import "time"

type Role string

const (
	RoleClient     Role = "CLIENT"
	RoleFreelancer Role = "FREELANCER"
	RoleCompany    Role = "COMPANY"
	RoleAdmin      Role = "ADMIN"
)

// IsProvider reports whether the role offers services and owns working hours.
func (r Role) IsProvider() bool {
	return r == RoleFreelancer || r == RoleCompany
}

type User struct {
	ID                  string
	Name                string
	Email               string
	Role                Role
	CancellationStrikes int
	BannedUntil         *time.Time
}

func (u User) SuspendedAt(now time.Time) bool {
	return u.BannedUntil != nil && now.Before(*u.BannedUntil)
}
