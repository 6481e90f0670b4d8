package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zcole/kalshi-core/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse carries the member id twice: the token field is
// returned as "member_id:token".
type loginResponse struct {
	MemberID         string `json:"member_id"`
	MemberIDAndToken string `json:"token"`
}

// Login signs in and stores the session for later requests. Calling
// it explicitly is optional; authorized requests sign in on demand.
func (c *Client) Login(ctx context.Context) error {
	body, err := c.doWithRetry(ctx, http.MethodPost, "/login", nil, loginRequest{
		Email:    c.creds.Username,
		Password: c.creds.Password,
	}, false)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("unmarshal login response: %w", err)
	}
	session, err := auth.NewSession(resp.MemberID, resp.MemberIDAndToken, c.now())
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.logger.Info("signed in to exchange", "member_id", session.MemberID)
	return nil
}

// Logout invalidates the session on the exchange and forgets it
// locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/logout", nil, struct{}{}, nil)
	c.dropSession()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	c.logger.Info("signed out of exchange")
	return nil
}

// freshSession returns a usable session, signing in first when the
// stored one is missing or stale.
func (c *Client) freshSession(ctx context.Context) (auth.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session.IsFresh(c.now()) {
		return session, nil
	}

	if err := c.Login(ctx); err != nil {
		return auth.Session{}, err
	}
	c.mu.Lock()
	session = c.session
	c.mu.Unlock()
	return session, nil
}

// Session returns the current session. The zero value means not
// signed in.
func (c *Client) Session() auth.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.session = auth.Session{}
	c.mu.Unlock()
}
