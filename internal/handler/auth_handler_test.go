package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

type authServiceMock struct {
	login   models.LoginRequest
	signup  models.SignUpRequest
	logout  models.LogoutRequest
	actor   models.Principal
	meta    models.RequestMeta
	profile *models.Profile
	err     error
}

func (m *authServiceMock) tokens() *models.LoginResponse {
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", ExpiresIn: 3600}
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest, meta models.RequestMeta) (*models.LoginResponse, error) {
	m.login, m.meta = req, meta
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens(), nil
}

func (m *authServiceMock) SignUp(_ context.Context, req models.SignUpRequest, meta models.RequestMeta) (*models.LoginResponse, error) {
	m.signup, m.meta = req, meta
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens(), nil
}

func (m *authServiceMock) RefreshToken(_ context.Context, _ models.RefreshTokenRequest, _ models.RequestMeta) (*models.LoginResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens(), nil
}

func (m *authServiceMock) Logout(_ context.Context, actor models.Principal, req models.LogoutRequest, _ models.RequestMeta) error {
	m.actor, m.logout = actor, req
	return m.err
}

func (m *authServiceMock) Me(_ context.Context, actor models.Principal) (*models.Profile, error) {
	m.actor = actor
	return m.profile, m.err
}

func (m *authServiceMock) UpdateProfile(_ context.Context, actor models.Principal, _ models.UpdateProfileRequest, _ models.RequestMeta) (*models.Profile, error) {
	m.actor = actor
	return m.profile, m.err
}

func (m *authServiceMock) ChangePassword(_ context.Context, actor models.Principal, _ models.ChangePasswordRequest, _ models.RequestMeta) error {
	m.actor = actor
	return m.err
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/api/auth/login", mustJSON(t, models.LoginRequest{Email: "ada@example.com", Password: "password123"}))
	c.Request.RemoteAddr = "192.0.2.7:5555"
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada@example.com", svc.login.Email)
	assert.Equal(t, "192.0.2.7", svc.meta.IP)
	assert.JSONEq(t, `{"token":"access","refreshToken":"refresh","tokenType":"Bearer","expiresIn":3600,"user":{"id":"","email":"","fullName":"","role":""},"issuedAt":"0001-01-01T00:00:00Z"}`, w.Body.String())
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{err: appErrors.ErrInvalidCredentials})

	c, w := newGinContext(http.MethodPost, "/api/auth/login", []byte(`{"email":"ada@example.com","password":"nope"}`))
	h.Login(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorBody(t, w).Code)

	c, w = newGinContext(http.MethodPost, "/api/auth/login", []byte(`{"email":`))
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerSignUpCreated(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/api/auth/signup", []byte(`{"email":"new@example.com","password":"password123","fullName":"New","role":"COLLABORATOR"}`))
	h.SignUp(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleCollaborator, svc.signup.Role)
}

func TestAuthHandlerLogoutUsesPrincipal(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/api/auth/logout", []byte(`{"refreshToken":"refresh"}`))
	withClaims(c, collabClaims)
	h.Logout(c)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, collabClaims.UserID, svc.actor.UserID)
	assert.Equal(t, "refresh", svc.logout.RefreshToken)
}

func TestAuthHandlerMeAndProfile(t *testing.T) {
	employeeID := testEmployeeID
	svc := &authServiceMock{profile: &models.Profile{
		UserInfo: models.UserInfo{ID: collabClaims.UserID, Email: "ada@example.com", FullName: "Ada", Role: models.RoleCollaborator, EmployeeID: &employeeID},
		Active:   true,
		Employee: &models.Employee{ID: testEmployeeID, FullName: "Ada", Email: "ada@example.com", Active: true},
	}}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodGet, "/api/auth/me", nil)
	withClaims(c, collabClaims)
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"employee":`)
	assert.Contains(t, w.Body.String(), `"employeeId":"`+testEmployeeID+`"`)

	c, w = newGinContext(http.MethodGet, "/api/auth/profile", nil)
	withClaims(c, collabClaims)
	h.Profile(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"employee":{`)
}

func TestAuthHandlerChangePasswordFieldError(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{err: appErrors.WithField("currentPassword", "current password is incorrect")})

	c, w := newGinContext(http.MethodPut, "/api/auth/me/password", []byte(`{"currentPassword":"x","newPassword":"password456"}`))
	withClaims(c, collabClaims)
	h.ChangePassword(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]string{"currentPassword": "current password is incorrect"}, errorBody(t, w).FieldErrors)
}
