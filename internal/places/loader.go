package places

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// State is the loader lifecycle.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
)

// DegradedWarning is shown next to address inputs when suggestions are off.
const DegradedWarning = "Address suggestions are unavailable; please type the full address."

// probeInput is a query every key with Places enabled can answer.
const probeInput = "airport"

// retryBackoff is how long a transient load failure is served before the
// next Load probes again.
const retryBackoff = 30 * time.Second

// Loader brings the mapping service up lazily, once per process.
//
// Construct one Loader at startup and share it. The first Load performs
// the key check and a probe request; concurrent callers wait on that same
// load. Ready, a missing key and a rejected key are kept for the life of
// the Loader. Any other failure is retried once retryBackoff has passed.
type Loader struct {
	apiKey  string
	baseURL string
	logger  *logging.Logger

	group singleflight.Group

	now func() time.Time

	mu      sync.RWMutex
	state   State
	client  *Client
	err     error
	retryAt time.Time
}

// NewLoader creates an unloaded loader.
func NewLoader(apiKey, baseURL string, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
		state:   StateUnloaded,
	}
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Err returns the load failure, if any.
func (l *Loader) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Load returns the ready client, loading it on first use.
func (l *Loader) Load(ctx context.Context) (*Client, error) {
	if c, err, done := l.terminal(); done {
		return c, err
	}
	v, err, _ := l.group.Do("load", func() (any, error) {
		if c, err, done := l.terminal(); done {
			return c, err
		}
		l.setState(StateLoading, nil, nil)
		c, err := l.load(context.WithoutCancel(ctx))
		if err != nil {
			sticky := permanentLoadError(err)
			l.logger.Warn("address autocomplete unavailable", "error", err, "retry", !sticky)
			var retryAt time.Time
			if !sticky {
				retryAt = l.now().Add(retryBackoff)
			}
			l.fail(err, retryAt)
			return nil, err
		}
		l.setState(StateReady, c, nil)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

func (l *Loader) load(ctx context.Context) (*Client, error) {
	if l.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := NewClient(l.apiKey, l.baseURL, l.logger)
	if _, err := c.Autocomplete(ctx, probeInput); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *Loader) terminal() (*Client, error, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch l.state {
	case StateReady:
		return l.client, nil, true
	case StateError:
		if l.retryAt.IsZero() || l.now().Before(l.retryAt) {
			return nil, l.err, true
		}
	}
	return nil, nil, false
}

func permanentLoadError(err error) bool {
	if errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == "REQUEST_DENIED"
}

func (l *Loader) setState(s State, c *Client, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
	l.client = c
	l.err = err
	l.retryAt = time.Time{}
}

func (l *Loader) fail(err error, retryAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateError
	l.client = nil
	l.err = err
	l.retryAt = retryAt
}

// Suggestions is the autocomplete answer for one keystroke batch. Warning
// is set when the service is degraded; typing still works.
type Suggestions struct {
	State       State        `json:"state"`
	Suggestions []Suggestion `json:"suggestions"`
	Warning     string       `json:"warning,omitempty"`
}

// Service is the address adapter used by the booking form.
type Service struct {
	loader *Loader
	logger *logging.Logger
}

// NewService wraps a shared loader.
func NewService(loader *Loader, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{loader: loader, logger: logger}
}

// Status reports the loader state and the warning to display, if any.
func (s *Service) Status() Suggestions {
	st := s.loader.State()
	out := Suggestions{State: st, Suggestions: []Suggestion{}}
	if st == StateError {
		out.Warning = DegradedWarning
	}
	return out
}

// Suggest returns predictions for input. Failures degrade to an empty list
// plus a warning rather than an error.
func (s *Service) Suggest(ctx context.Context, input string) Suggestions {
	input = strings.TrimSpace(input)
	client, err := s.loader.Load(ctx)
	if err != nil {
		return Suggestions{State: StateError, Suggestions: []Suggestion{}, Warning: DegradedWarning}
	}
	out := Suggestions{State: StateReady, Suggestions: []Suggestion{}}
	if len(input) < 3 {
		return out
	}
	preds, err := client.Autocomplete(ctx, input)
	if err != nil {
		s.logger.Warn("autocomplete lookup failed", "error", err)
		out.Warning = StatusMessage(err)
		return out
	}
	if preds != nil {
		out.Suggestions = preds
	}
	return out
}

// Resolve turns a selected prediction into its formatted address.
func (s *Service) Resolve(ctx context.Context, placeID string) (string, error) {
	client, err := s.client(ctx)
	if err != nil {
		return "", err
	}
	return client.PlaceAddress(ctx, placeID)
}

// Route estimates drive time between two addresses.
func (s *Service) Route(ctx context.Context, origin, destination string) (Route, error) {
	client, err := s.client(ctx)
	if err != nil {
		return Route{}, err
	}
	return client.Route(ctx, origin, destination)
}

func (s *Service) client(ctx context.Context) (*Client, error) {
	client, err := s.loader.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrMissingAPIKey) {
			return nil, err
		}
		return nil, errors.Join(ErrUnavailable, err)
	}
	return client, nil
}
