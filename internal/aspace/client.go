package aspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

const (
	sessionHeader        = "X-ArchivesSpace-Session"
	defaultHTTPTimeout   = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
	maxErrorBody         = 2048
)

// Config captures the connection and scope settings for one repository.
type Config struct {
	BaseURL      string
	Username     string
	Password     string
	RepositoryID string
	ResourceID   string
	Timeout      time.Duration
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts    int
	RetryDelay       time.Duration
	TopContainerType string
	// FallbackEnumerations supplies vocabulary values by enumeration name when
	// the live enumeration cannot be fetched.
	FallbackEnumerations map[string][]string
}

// Client talks to the ArchivesSpace backend API with an authenticated
// session, bounded fixed-delay retry, and one transparent re-login per call
// when the session expires.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	sleeper    func(time.Duration)

	mu      sync.Mutex
	session string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used for retry and session diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// New constructs a repository client.
func New(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.RepositoryID = strings.TrimSpace(cfg.RepositoryID)
	cfg.ResourceID = strings.TrimSpace(cfg.ResourceID)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if strings.TrimSpace(cfg.TopContainerType) == "" {
		cfg.TopContainerType = "AV Case"
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "aspace")
	return client
}

// RepositoryURI returns the configured repository reference.
func (c *Client) RepositoryURI() string {
	return "/repositories/" + c.cfg.RepositoryID
}

// ResourceURI returns the configured resource reference.
func (c *Client) ResourceURI() string {
	return c.RepositoryURI() + "/resources/" + c.cfg.ResourceID
}

// HasSession reports whether a session token is held.
func (c *Client) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != ""
}

// StatusError reports a non-2xx repository response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Login authenticates and stores the session token. Failures are logged and
// returned tagged with services.ErrSession; a failed login never panics.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.BaseURL == "" || c.cfg.Username == "" {
		err := services.Wrap(services.ErrConfiguration, "aspace", "login", "base_url and username are required", nil)
		logging.ErrorWithContext(c.logger, "repository login failed", "login_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set archivesspace.base_url and archivesspace.username"),
		)
		return err
	}
	c.logger.Info("authenticating with repository", logging.String("base_url", c.cfg.BaseURL))

	endpoint := c.cfg.BaseURL + "/users/" + url.PathEscape(c.cfg.Username) + "/login"
	form := url.Values{"password": {c.cfg.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return services.Wrap(services.ErrSession, "aspace", "login", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.execute(req)
	if err != nil {
		logging.ErrorWithContext(c.logger, "repository login failed", "login_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check credentials and that the backend API URL is reachable"),
		)
		return services.Wrap(services.ErrSession, "aspace", "login", "authentication failed", err)
	}
	var payload struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || strings.TrimSpace(payload.Session) == "" {
		if err == nil {
			err = errors.New("response carried no session token")
		}
		logging.ErrorWithContext(c.logger, "repository login failed", "login_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "confirm base_url points at the backend API, not the staff UI"),
		)
		return services.Wrap(services.ErrSession, "aspace", "login", "decode session", err)
	}

	c.mu.Lock()
	c.session = payload.Session
	c.mu.Unlock()
	c.logger.Info("authenticated with repository")
	return nil
}

// Logout invalidates the session. Without a session it is a no-op. Errors are
// logged and returned for information only; callers should not abort on them.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = ""
	c.mu.Unlock()
	if session == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set(sessionHeader, session)
	if _, err := c.execute(req); err != nil {
		logging.WarnWithContext(c.logger, "repository logout failed", "logout_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "session expires on the server's schedule"),
		)
		return err
	}
	c.logger.Debug("logged out of repository")
	return nil
}

// Do executes one API call and returns the response body.
//
// Non-2xx responses and network failures are retried up to RetryAttempts
// times with a fixed RetryDelay between attempts. HTTP 412 (session expired)
// triggers a single re-login and an immediate retry that does not consume an
// attempt. A nil body with a non-nil error means the operation did not happen.
// The terminal error carries services.ErrNotFound for 404,
// services.ErrValidation for other 4xx responses, and services.ErrTransient
// otherwise.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "aspace", method+" "+path, "encode body", err)
		}
	}

	attempts := c.cfg.RetryAttempts + 1
	reauthenticated := false
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := c.send(ctx, method, path, query, encoded)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "aspace", method+" "+path, "request canceled", ctx.Err())
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusPreconditionFailed && !reauthenticated {
			reauthenticated = true
			logging.WarnWithContext(c.logger, "repository session expired; re-authenticating", "session_expired",
				logging.String("path", path),
				logging.String(logging.FieldImpact, "request repeated after login"),
			)
			if loginErr := c.Login(ctx); loginErr != nil {
				return nil, loginErr
			}
			attempt--
			continue
		}

		if attempt == attempts {
			break
		}
		logging.WarnWithContext(c.logger, "repository request failed; retrying", "request_retry",
			logging.String("method", method),
			logging.String("path", path),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", attempts),
			logging.Error(err),
			logging.String(logging.FieldImpact, "request will be retried after a fixed delay"),
		)
		if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
			return nil, services.Wrap(services.ErrTimeout, "aspace", method+" "+path, "retry wait canceled", err)
		}
	}

	logging.ErrorWithContext(c.logger, "repository request failed", "request_failed",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("attempts", attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, "check the repository response body above"),
	)
	return nil, services.Wrap(classify(lastErr), "aspace", method+" "+path, fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

// GetJSON decodes a GET response into target.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, target any) error {
	raw, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return services.Wrap(services.ErrTransient, "aspace", "GET "+path, "decode response", err)
	}
	return nil
}

func classify(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return services.ErrNotFound
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 &&
			statusErr.StatusCode != http.StatusRequestTimeout &&
			statusErr.StatusCode != http.StatusTooManyRequests:
			return services.ErrValidation
		}
	}
	return services.ErrTransient
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte) (json.RawMessage, error) {
	endpoint := c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	raw, err := c.execute(req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func (c *Client) execute(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody] + "..."
		}
		return nil, &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       text,
		}
	}
	return body, nil
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
