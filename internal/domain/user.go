package domain

import "time"

// User is the local record of an external identity. ExternalID is the
// subject asserted by the identity provider and never changes once set.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type NewUser struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// UserPatch carries a partial profile update. Nil fields are left unchanged.
type UserPatch struct {
	Email     *string
	Name      *string
	AvatarURL *string
}

type UpdateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	Name      *string `json:"name" validate:"omitempty,max=200"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url"`
}

type UserResponse struct {
	User *User `json:"user"`
}
