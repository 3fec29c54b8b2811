package repository

import (
	"context"
	"fmt"
	"strings"

	"attendance/internal/entity"
	"attendance/internal/httpclient"
)

type AuthRepository struct {
	client *httpclient.Client
}

func NewAuthRepository(client *httpclient.Client) *AuthRepository {
	return &AuthRepository{client: client}
}

// Login exchanges credentials for an access token. The email field also
// accepts a username.
func (r *AuthRepository) Login(ctx context.Context, req entity.LoginRequest) (*entity.LoginResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := checkInput(req); err != nil {
		return nil, fmt.Errorf("repository.Login: %w", err)
	}

	var resp entity.LoginResponse
	if err := r.client.Post(ctx, "/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("repository.Login: %w", err)
	}
	if err := checkResponse("repository.Login", resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProfile returns the user that owns the token in ctx's cookie jar.
func (r *AuthRepository) GetProfile(ctx context.Context) (*entity.User, error) {
	var resp struct {
		Success bool        `json:"success"`
		Data    entity.User `json:"data"`
	}
	if err := r.client.Get(ctx, "/auth/me", &resp); err != nil {
		return nil, fmt.Errorf("repository.GetProfile: %w", err)
	}
	if err := checkResponse("repository.GetProfile", resp.Data); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Logout tells the API the token is no longer used. It does not touch the
// local session.
func (r *AuthRepository) Logout(ctx context.Context) error {
	if err := r.client.Post(ctx, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("repository.Logout: %w", err)
	}
	return nil
}
