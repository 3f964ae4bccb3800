package auth

import (
	"strings"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
)

type MagicLinkRequestDTO struct {
	Email string `json:"email"`
}

func (dto *MagicLinkRequestDTO) Validate() error {
	email := strings.TrimSpace(dto.Email)
	if email == "" {
		return internal.NewValidationFieldError("email", "email is required", internal.ErrCodeValidationFailed)
	}
	if !identity.ValidEmail(email) {
		return internal.NewValidationFieldError("email", "invalid email format", internal.ErrCodeInvalidEmail)
	}
	return nil
}

type MagicLinkResponse struct {
	Message   string `json:"message"`
	MagicLink string `json:"magicLink,omitempty"`
}

type CallbackRequestDTO struct {
	Token string `json:"token"`
}

type CallbackResponse struct {
	Message    string         `json:"message"`
	User       *identity.User `json:"user"`
	RedirectTo string         `json:"redirectTo"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type MeResponse struct {
	User *identity.User `json:"user"`
}
