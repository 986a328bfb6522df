package models

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is the public profile mirrored from the external identity
// provider. Credentials never pass through this system.
type UserProfile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
}
