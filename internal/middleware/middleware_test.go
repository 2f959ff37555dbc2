package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/response"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.token = token
	return s.claims, s.err
}

func managerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-1", Email: "m@example.com", Role: models.RoleManager, EmployeeID: "e-1"}
}

func protectedEngine(v TokenValidator, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(v)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": PrincipalFrom(c).UserID})
	})
	r.GET("/protected", handlers...)
	return r
}

func do(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := protectedEngine(&stubValidator{claims: managerClaims()})

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer"} {
		rec := do(r, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, decodeError(t, rec).Code)
	}
}

func TestJWTPropagatesValidationError(t *testing.T) {
	r := protectedEngine(&stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")})

	rec := do(r, "Bearer stale")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token expired", decodeError(t, rec).Message)
}

func TestJWTStoresPrincipal(t *testing.T) {
	v := &stubValidator{claims: managerClaims()}
	r := protectedEngine(v)

	rec := do(r, "bearer good-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "good-token", v.token)
	assert.JSONEq(t, `{"userId":"u-1"}`, rec.Body.String())
}

func TestJWTRejectsClaimsWithoutRole(t *testing.T) {
	r := protectedEngine(&stubValidator{claims: &models.JWTClaims{UserID: "u-1"}})
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer x").Code)
}

func TestRequireActionFollowsGrantTable(t *testing.T) {
	r := protectedEngine(&stubValidator{claims: managerClaims()}, RequireAction(policy.ActionUserManage))
	rec := do(r, "Bearer x")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, appErrors.ErrForbidden.Code, decodeError(t, rec).Code)

	r = protectedEngine(&stubValidator{claims: managerClaims()}, RequireAction(policy.ActionVacationApprove))
	assert.Equal(t, http.StatusOK, do(r, "Bearer x").Code)
}

func TestRequireActionPassesOwnScope(t *testing.T) {
	collaborator := &models.JWTClaims{UserID: "u-2", Email: "c@example.com", Role: models.RoleCollaborator, EmployeeID: "e-2"}

	r := protectedEngine(&stubValidator{claims: collaborator}, RequireAction(policy.ActionVacationCancel))
	assert.Equal(t, http.StatusOK, do(r, "Bearer x").Code)

	r = protectedEngine(&stubValidator{claims: collaborator}, RequireAction(policy.ActionVacationApprove))
	assert.Equal(t, http.StatusForbidden, do(r, "Bearer x").Code)
}

func TestRequireActionWithoutJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RequireAction(policy.ActionAuditView)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, method+" "+path+" "+http.StatusText(status))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/vacations/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/vacations/abc", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"GET /vacations/:id OK", "GET unmatched Not Found"}, obs.calls)
}

func TestRateLimitMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, err := NewLimiter("2-M", nil)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/auth/login", RateLimit(l, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 2 {
			assert.Equal(t, appErrors.ErrTooManyRequests.Code, decodeError(t, rec).Code)
			assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.1.1.2:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewLimiterRejectsBadRate(t *testing.T) {
	_, err := NewLimiter("ten per minute", nil)
	assert.Error(t, err)
}
