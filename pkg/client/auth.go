package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/vacation-api/internal/models"
)

// Login authenticates and starts the session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.UserInfo, error) {
	if email == "" {
		return nil, fieldError("email", "email is required")
	}
	if password == "" {
		return nil, fieldError("password", "password is required")
	}
	var res models.LoginResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   models.LoginRequest{Email: email, Password: password},
		public: true,
	}, &res)
	if err != nil {
		return nil, err
	}
	return c.start(res)
}

// SignUp registers a MANAGER or COLLABORATOR account and starts the session.
func (c *Client) SignUp(ctx context.Context, req models.SignUpRequest) (*models.UserInfo, error) {
	if req.Role == models.RoleAdmin {
		return nil, fieldError("role", "ADMIN accounts cannot be self-registered")
	}
	var res models.LoginResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/signup", body: req, public: true}, &res); err != nil {
		return nil, err
	}
	return c.start(res)
}

func (c *Client) start(res models.LoginResponse) (*models.UserInfo, error) {
	if err := c.session.Start(Tokens{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, res.User); err != nil {
		return nil, err
	}
	user := res.User
	return &user, nil
}

// Resume loads the persisted token and resolves its principal. A stale token
// ends in ErrSessionExpired with the session cleared.
func (c *Client) Resume(ctx context.Context) (*models.UserInfo, error) {
	if err := c.session.Init(); err != nil {
		return nil, err
	}
	if !c.session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return c.Me(ctx)
}

// Me fetches the current principal and caches it on the session.
func (c *Client) Me(ctx context.Context) (*models.UserInfo, error) {
	var user models.UserInfo
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me"}, &user); err != nil {
		return nil, err
	}
	c.session.setUser(user)
	return &user, nil
}

// Profile fetches the caller's full profile.
func (c *Client) Profile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/profile"}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ChangePassword updates the caller's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	if len(next) < 8 {
		return fieldError("newPassword", "new password must be at least 8 characters")
	}
	return c.do(ctx, call{
		method: http.MethodPut,
		path:   "/auth/me/password",
		body:   models.ChangePasswordRequest{CurrentPassword: current, NewPassword: next},
	}, nil)
}

// Logout revokes the refresh token and clears the session. The session is
// cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if refresh := c.session.refreshToken(); refresh != "" && c.session.Authenticated() {
		err = c.do(ctx, call{
			method: http.MethodPost,
			path:   "/auth/logout",
			body:   models.LogoutRequest{RefreshToken: refresh},
		}, nil)
		if errors.Is(err, ErrSessionExpired) {
			err = nil
		}
	}
	if clearErr := c.session.Clear(EndLogout); err == nil {
		err = clearErr
	}
	return err
}
