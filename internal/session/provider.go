package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/chauffeur-booking/internal/storage"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// ErrNotSignedIn is returned by operations that need a session.
var ErrNotSignedIn = errors.New("session: not signed in")

// ErrCredentialsRequired is returned when email or password is blank.
var ErrCredentialsRequired = errors.New("session: email and password are required")

// EventType names a change in sign-in state.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is delivered to subscribers. Tokens never leave the provider.
type Event struct {
	Type EventType `json:"event"`
	User *User     `json:"user"`
}

// State is the snapshot other components read.
type State struct {
	User    *User    `json:"user"`
	Session *Session `json:"-"`
	Loading bool     `json:"loading"`
}

// Authenticator is the slice of the auth service the provider drives.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, *User, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
}

const subscriberBuffer = 8

// Provider owns one visitor's session.
//
// Build one per visitor and call Initialize before reading State; the
// first call restores the persisted session and later calls are no-ops.
// Until then State reports Loading.
type Provider struct {
	auth   Authenticator
	local  storage.Local
	key    string
	claims *ClaimsParser
	logger *logging.Logger
	now    func() time.Time

	once sync.Once

	mu          sync.RWMutex
	session     *Session
	initialized bool
	subs        map[int]chan Event
	nextSub     int
	closed      bool
}

// NewProvider wires a provider to the auth service and the visitor's
// storage slot named key.
func NewProvider(auth Authenticator, local storage.Local, key string, claims *ClaimsParser, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.Default()
	}
	if claims == nil {
		claims = NewClaimsParser("")
	}
	return &Provider{
		auth:   auth,
		local:  local,
		key:    key,
		claims: claims,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]chan Event),
	}
}

// Initialize restores the persisted session once. An expired session is
// refreshed when it carries a refresh token and cleared otherwise.
func (p *Provider) Initialize(ctx context.Context) {
	p.once.Do(func() {
		s := p.restore(ctx)
		p.mu.Lock()
		p.session = s
		p.initialized = true
		p.emitLocked(EventInitialSession)
		p.mu.Unlock()
	})
}

func (p *Provider) restore(ctx context.Context) *Session {
	raw, ok, err := p.local.Get(ctx, p.key)
	if err != nil {
		p.logger.Warn("session slot unreadable", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.AccessToken == "" {
		p.logger.Warn("discarding malformed stored session", "error", err)
		p.clear(ctx)
		return nil
	}

	expired := s.Expired(p.now())
	claims, err := p.claims.Parse(s.AccessToken)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		expired = true
	case err != nil:
		p.logger.Warn("discarding stored session with invalid token", "error", err)
		p.clear(ctx)
		return nil
	case s.User == nil:
		s.User = claims.User()
	}

	if !expired {
		return &s
	}
	if s.RefreshToken == "" {
		p.clear(ctx)
		return nil
	}
	fresh, err := p.auth.Refresh(ctx, s.RefreshToken)
	if err != nil {
		p.logger.Warn("stored session refresh failed", "error", err)
		p.clear(ctx)
		return nil
	}
	p.fillUser(ctx, fresh)
	p.persist(ctx, fresh)
	return fresh
}

// State returns the current snapshot.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := State{Session: p.session, Loading: !p.initialized}
	if p.session != nil {
		st.User = p.session.User
	}
	return st
}

// SignIn authenticates with email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrCredentialsRequired
	}
	p.Initialize(ctx)
	s, err := p.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.adopt(ctx, s, EventSignedIn)
	return s.User, nil
}

// SignUp registers an account. The provider signs in only when the auth
// service issues a session right away; otherwise the user must confirm
// their email first and the state stays signed out.
func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrCredentialsRequired
	}
	p.Initialize(ctx)
	s, u, err := p.auth.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}
	if s != nil {
		p.adopt(ctx, s, EventSignedIn)
	}
	return u, nil
}

// SignOut ends the session. The remote revoke is best effort; the local
// session is always dropped.
func (p *Provider) SignOut(ctx context.Context) error {
	p.Initialize(ctx)
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()
	if s == nil {
		return ErrNotSignedIn
	}
	if err := p.auth.SignOut(ctx, s.AccessToken); err != nil {
		p.logger.Warn("remote sign-out failed", "error", err)
	}
	p.clear(ctx)
	p.emit(EventSignedOut)
	return nil
}

// Refresh renews the current session.
func (p *Provider) Refresh(ctx context.Context) error {
	p.Initialize(ctx)
	p.mu.RLock()
	s := p.session
	p.mu.RUnlock()
	if s == nil || s.RefreshToken == "" {
		return ErrNotSignedIn
	}
	fresh, err := p.auth.Refresh(ctx, s.RefreshToken)
	if err != nil {
		return err
	}
	p.adopt(ctx, fresh, EventTokenRefreshed)
	return nil
}

// Subscribe streams change events until cancel is called or the provider
// is closed. A subscriber joining after initialization first receives
// INITIAL_SESSION with the current user.
func (p *Provider) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	if p.initialized {
		ch <- Event{Type: EventInitialSession, User: p.userLocked()}
	}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(c)
			}
		})
	}
}

// Close ends every subscription.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}

func (p *Provider) adopt(ctx context.Context, s *Session, ev EventType) {
	p.fillUser(ctx, s)
	p.persist(ctx, s)
	p.mu.Lock()
	p.session = s
	p.initialized = true
	p.emitLocked(ev)
	p.mu.Unlock()
}

// fillUser attaches the account to a session issued without one, from the
// token claims when they name a subject and from the auth service otherwise.
func (p *Provider) fillUser(ctx context.Context, s *Session) {
	if s.User != nil {
		return
	}
	if claims, err := p.claims.Parse(s.AccessToken); err == nil && claims.Subject != "" {
		s.User = claims.User()
		return
	}
	u, err := p.auth.GetUser(ctx, s.AccessToken)
	if err != nil {
		p.logger.Warn("session user lookup failed", "error", err)
		return
	}
	s.User = u
}

func (p *Provider) persist(ctx context.Context, s *Session) {
	raw, err := json.Marshal(s)
	if err != nil {
		p.logger.Warn("session encode failed", "error", err)
		return
	}
	if err := p.local.Set(ctx, p.key, string(raw)); err != nil {
		p.logger.Warn("session persist failed", "error", err)
	}
}

func (p *Provider) clear(ctx context.Context) {
	if err := p.local.Remove(ctx, p.key); err != nil {
		p.logger.Warn("session slot clear failed", "error", err)
	}
}

func (p *Provider) userLocked() *User {
	if p.session == nil {
		return nil
	}
	return p.session.User
}

func (p *Provider) emit(t EventType) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	p.emitLocked(t)
}

func (p *Provider) emitLocked(t EventType) {
	ev := Event{Type: t, User: p.userLocked()}
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			p.logger.Warn("session subscriber lagging; event dropped", "event", string(t))
		}
	}
}
