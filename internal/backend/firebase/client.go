// Package firebase implements the service.Service interface using Firebase
// Authentication (Identity Toolkit) and Cloud Firestore.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	firestore "google.golang.org/api/firestore/v1"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

const (
	// DefaultTimeout bounds every remote call when Options.Timeout is zero.
	DefaultTimeout = 10 * time.Second

	// PageSize is the number of task documents per list page.
	PageSize = 100

	// SecureTokenURL is the token refresh endpoint.
	SecureTokenURL = "https://securetoken.googleapis.com/v1/token"
)

// Options configure a Client.
type Options struct {
	APIKey            string
	ProjectID         string
	DatabaseID        string
	SessionPath       string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables throttling
	Burst             int
	Logger            *zap.Logger

	// Endpoint overrides for testing. HTTPClient, when set, is used for all
	// requests and the API key is sent only on token refresh.
	AuthEndpoint      string
	FirestoreEndpoint string
	TokenURL          string
	HTTPClient        *http.Client
}

// Client implements service.Service over Firebase.
type Client struct {
	auth        *identitytoolkit.Service
	db          *firestore.Service
	oauth       *oauth2.Config
	refresh     *http.Client    // token refresh requests, bounded by timeout
	refreshCtx  context.Context // carries refresh for background refreshes
	database    string
	sessionPath string
	timeout     time.Duration
	limiter     *rate.Limiter
	log         *zap.Logger
	now         func() time.Time

	mu  sync.Mutex
	src *persistingSource // nil while signed out
}

// NewFromConfig creates a client for the project named in cfg's settings.
func NewFromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	s := cfg.Settings
	if err := s.RequireFirebase(); err != nil {
		return nil, err
	}
	return New(ctx, Options{
		APIKey:            s.Firebase.APIKey,
		ProjectID:         s.Firebase.ProjectID,
		DatabaseID:        s.Firebase.DatabaseID,
		SessionPath:       cfg.SessionPath(),
		Timeout:           s.Backend.Timeout,
		RequestsPerSecond: s.Backend.RequestsPerSecond,
		Burst:             s.Backend.Burst,
		Logger:            log,
	})
}

// New creates a client. No request is made until the first operation.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("firebase: project ID required")
	}
	if opts.DatabaseID == "" {
		opts.DatabaseID = "(default)"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TokenURL == "" {
		opts.TokenURL = SecureTokenURL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{
		database:    fmt.Sprintf("projects/%s/databases/%s", opts.ProjectID, opts.DatabaseID),
		sessionPath: opts.SessionPath,
		timeout:     opts.Timeout,
		limiter:     newLimiter(opts.RequestsPerSecond, opts.Burst),
		log:         log.Named("firebase"),
		now:         time.Now,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.TokenURL + "?key=" + opts.APIKey,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}

	authOpts := []option.ClientOption{}
	base := http.DefaultTransport
	if opts.HTTPClient != nil {
		authOpts = append(authOpts, option.WithHTTPClient(opts.HTTPClient))
		if opts.HTTPClient.Transport != nil {
			base = opts.HTTPClient.Transport
		}
	} else {
		authOpts = append(authOpts, option.WithAPIKey(opts.APIKey))
	}
	// oauth2.Transport refreshes without the request's context, so the
	// refresh client carries the deadline itself.
	c.refresh = &http.Client{Timeout: opts.Timeout, Transport: base}
	c.refreshCtx = context.WithValue(context.Background(), oauth2.HTTPClient, c.refresh)
	if opts.AuthEndpoint != "" {
		authOpts = append(authOpts, option.WithEndpoint(opts.AuthEndpoint))
	}
	auth, err := identitytoolkit.NewService(ctx, authOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	c.auth = auth

	// Firestore requests carry the signed-in user's ID token.
	dbOpts := []option.ClientOption{
		option.WithHTTPClient(&http.Client{Transport: &oauth2.Transport{Source: c, Base: base}}),
	}
	if opts.FirestoreEndpoint != "" {
		dbOpts = append(dbOpts, option.WithEndpoint(opts.FirestoreEndpoint))
	}
	db, err := firestore.NewService(ctx, dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore service: %w", err)
	}
	c.db = db

	return c, nil
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Token implements oauth2.TokenSource for Firestore requests.
func (c *Client) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	src := c.src
	c.mu.Unlock()
	if src == nil {
		return nil, service.ErrNoSession
	}
	return src.Token()
}

// begin waits for the rate limiter and bounds the call with the client timeout.
func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, wrapError(err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, cancel, nil
}

// install makes creds the active account and persists them.
func (c *Client) install(creds credentials) error {
	src := newPersistingSource(c.refreshCtx, c.oauth, creds, c.sessionPath, c.log)
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()
	if c.sessionPath == "" {
		return nil
	}
	if err := creds.save(c.sessionPath); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// forget drops the active account and its session file.
func (c *Client) forget() error {
	c.mu.Lock()
	c.src = nil
	c.mu.Unlock()
	if c.sessionPath == "" {
		return nil
	}
	if err := os.Remove(c.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// authorize checks that sess is the account the client holds tokens for.
func (c *Client) authorize(sess service.Session) error {
	if sess.UID == "" {
		return service.ErrNoSession
	}
	c.mu.Lock()
	src := c.src
	c.mu.Unlock()
	if src == nil || src.account().UID != sess.UID {
		return service.ErrNoSession
	}
	return nil
}

var _ service.Service = (*Client)(nil)
