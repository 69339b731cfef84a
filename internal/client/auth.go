package client

import (
	"context"

	"pharmadesk/m/domain"
)

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login authenticates and stores the issued token in the session.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var resp LoginResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, "POST", "/auth/login", body, &resp); err != nil {
		return LoginResponse{}, err
	}
	c.session.Init(resp.Token, resp.User.Username)
	return resp, nil
}

// Register creates a user account and stores the issued token.
func (c *Client) Register(ctx context.Context, username, password, role string) (LoginResponse, error) {
	var resp LoginResponse
	body := map[string]string{"username": username, "password": password}
	if role != "" {
		body["role"] = role
	}
	if err := c.do(ctx, "POST", "/auth/register", body, &resp); err != nil {
		return LoginResponse{}, err
	}
	c.session.Init(resp.Token, resp.User.Username)
	return resp, nil
}

// Logout clears the local session. There is no server-side state to revoke.
func (c *Client) Logout() {
	c.session.Clear()
}
