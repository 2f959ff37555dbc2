package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/noah-isme/vacation-api/internal/models"
)

// Tokens is what a TokenStore persists between runs.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// TokenStore persists tokens across process restarts.
type TokenStore interface {
	Load() (Tokens, error)
	Save(Tokens) error
	Clear() error
}

// FileTokenStore keeps tokens in a JSON file readable only by the owner.
type FileTokenStore struct {
	Path string
}

// Load returns empty tokens when the file does not exist.
func (f FileTokenStore) Load() (Tokens, error) {
	var t Tokens
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return t, fmt.Errorf("read token file: %w", err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return Tokens{}, fmt.Errorf("decode token file: %w", err)
	}
	return t, nil
}

func (f FileTokenStore) Save(t Tokens) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0o600)
}

func (f FileTokenStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// MemoryTokenStore keeps tokens for the life of the process.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens Tokens
}

func (m *MemoryTokenStore) Load() (Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens, nil
}

func (m *MemoryTokenStore) Save(t Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = t
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = Tokens{}
	return nil
}

// EndReason says why a session ended.
type EndReason string

const (
	EndLogout  EndReason = "logout"
	EndExpired EndReason = "expired"
)

// Session holds the bearer token and the principal it belongs to.
type Session struct {
	mu     sync.RWMutex
	store  TokenStore
	tokens Tokens
	user   *models.UserInfo

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(EndReason)
}

// NewSession builds an empty session. A nil store keeps tokens in memory.
func NewSession(store TokenStore) *Session {
	if store == nil {
		store = &MemoryTokenStore{}
	}
	return &Session{store: store, subs: make(map[int]func(EndReason))}
}

// Init loads a persisted token. The principal is unknown until the client
// resolves it with Me.
func (s *Session) Init() error {
	tokens, err := s.store.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tokens = tokens
	s.user = nil
	s.mu.Unlock()
	return nil
}

// Start stores a freshly issued token and its user.
func (s *Session) Start(tokens Tokens, user models.UserInfo) error {
	s.mu.Lock()
	s.tokens = tokens
	s.user = &user
	s.mu.Unlock()
	return s.store.Save(tokens)
}

func (s *Session) setUser(user models.UserInfo) {
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
}

// Token returns the bearer token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

func (s *Session) refreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.RefreshToken
}

// User returns the resolved user, if any.
func (s *Session) User() (models.UserInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.UserInfo{}, false
	}
	return *s.user, true
}

// Principal returns the actor used for local policy checks.
func (s *Session) Principal() models.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || s.tokens.AccessToken == "" {
		return models.Principal{}
	}
	p := models.Principal{UserID: s.user.ID, Email: s.user.Email, Role: s.user.Role}
	if s.user.EmployeeID != nil {
		p.EmployeeID = *s.user.EmployeeID
	}
	return p
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Clear drops the token, removes it from the store and notifies subscribers.
// Clearing an empty session notifies nobody.
func (s *Session) Clear(reason EndReason) error {
	s.mu.Lock()
	had := s.tokens.AccessToken != ""
	s.tokens = Tokens{}
	s.user = nil
	s.mu.Unlock()

	err := s.store.Clear()
	if had {
		s.notify(reason)
	}
	return err
}

// Subscribe registers fn to run whenever the session ends. The returned
// function removes the subscription.
func (s *Session) Subscribe(fn func(EndReason)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) notify(reason EndReason) {
	s.subMu.Lock()
	fns := make([]func(EndReason), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(reason)
	}
}
