package dto

import "github.com/google/uuid"

type UserProfileResponse struct {
	Id        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Bio       *string   `json:"bio,omitempty"`
	Education *string   `json:"education,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
}

// UpdateProfileRequest carries partial updates; nil fields are left as-is.
type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Education *string `json:"education,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}
