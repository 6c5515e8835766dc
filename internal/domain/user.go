// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and the subscription tier
// enumeration. Users are owned by the account subsystem; the quota engine
// reads them to resolve the live tier on every admission check.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier represents a named subscription level with associated per-resource
// monthly limits.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierTeam       Tier = "team"
	TierEnterprise Tier = "enterprise"
)

// ParseTier validates a tier name against the closed enumeration.
// Unknown names are a configuration error, never silently mapped to a
// default tier.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierPro, TierTeam, TierEnterprise:
		return Tier(s), nil
	}
	return "", Config("tier.parse", "unknown subscription tier %q", s)
}

// User represents a registered user as seen by the quota engine.
//
// The tier field is updated out-of-band by the billing process. It is read
// fresh on every admission check so an upgrade takes effect on the very
// next call.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Tier      Tier
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
