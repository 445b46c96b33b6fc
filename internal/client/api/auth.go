package api

import (
	"context"
	"net/http"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, nil, nil, false)
}

// Register creates an account and returns its user id.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, credentials{username, password}, &out, false); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// Login authenticates and keeps the returned tokens for later requests.
func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	var tp TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, credentials{username, password}, &tp, false); err != nil {
		return TokenPair{}, err
	}
	c.SetTokens(tp)
	return tp, nil
}
