package authapi

import "portal/cmd/identity"

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
}

type userResponse struct {
	User      identity.User `json:"user"`
	CSRFToken string        `json:"csrf_token,omitempty"`
}

type refreshResponse struct {
	Msg       string `json:"msg"`
	CSRFToken string `json:"csrf_token"`
}
