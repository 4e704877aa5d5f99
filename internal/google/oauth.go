package google

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/listunsub/internal/instrumentation"
	"github.com/teemow/listunsub/internal/logging"
)

// ErrNoToken is returned when no usable token is available and the
// configured Authorizer cannot obtain one.
var ErrNoToken = errors.New("no valid Google OAuth token found")

// LoadConfig reads the OAuth client descriptor at path.
func LoadConfig(path string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret %s: %w", path, err)
	}
	return cfg, nil
}

// TokenFile is the persisted token on disk.
type TokenFile struct {
	Path string
}

// Load reads the token. A missing file yields an error wrapping fs.ErrNotExist.
func (f *TokenFile) Load() (*oauth2.Token, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", f.Path, err)
	}
	return &tok, nil
}

// Save writes the token, replacing any existing file atomically.
func (f *TokenFile) Save(tok *oauth2.Token) error {
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Credentials ties together the client descriptor, the token file and the
// strategy used when no usable token exists.
type Credentials struct {
	Config     *oauth2.Config
	TokenFile  *TokenFile
	Authorizer Authorizer
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// TokenSource returns a token source backed by the persisted token. A
// missing or unrefreshable token is replaced through the Authorizer. Every
// new token the source produces is written back to the token file.
func (c *Credentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	logger := c.logger()

	stored, err := c.TokenFile.Load()
	switch {
	case err == nil:
		ts := c.Config.TokenSource(ctx, stored)
		tok, err := ts.Token()
		if err == nil {
			if tok.AccessToken != stored.AccessToken {
				c.Metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultRefreshed)
				logger.Debug("refreshed access token", slog.String("token", logging.SanitizeToken(tok.AccessToken)))
				if err := c.TokenFile.Save(tok); err != nil {
					return nil, err
				}
			}
			return c.persisting(ts, tok), nil
		}
		c.Metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		logger.Warn("stored token is no longer valid", logging.Err(err))
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("no stored token", slog.String("path", c.TokenFile.Path))
	default:
		return nil, err
	}

	tok, err := c.Authorizer.Authorize(ctx, c.Config)
	if err != nil {
		return nil, err
	}
	c.Metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultConsent)
	if err := c.TokenFile.Save(tok); err != nil {
		return nil, err
	}
	return c.persisting(c.Config.TokenSource(ctx, tok), tok), nil
}

// HTTPClient returns an HTTP client that authorizes requests with the token
// source. The client speaks HTTP/1.1 only to avoid HTTP/2 protocol errors
// seen with the Google APIs.
func (c *Credentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := c.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, ts)
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = http1Transport()
	}
	return client, nil
}

// http1Transport is http.DefaultTransport with HTTP/2 negotiation disabled.
// A non-nil empty TLSNextProto keeps ALPN from selecting h2.
func http1Transport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ForceAttemptHTTP2 = false
	t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	return t
}

func (c *Credentials) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Credentials) persisting(base oauth2.TokenSource, current *oauth2.Token) oauth2.TokenSource {
	return &persistingTokenSource{
		base:    base,
		file:    c.TokenFile,
		last:    current.AccessToken,
		logger:  c.logger(),
		metrics: c.Metrics,
	}
}

// persistingTokenSource writes refreshed tokens back to the token file.
type persistingTokenSource struct {
	mu      sync.Mutex
	base    oauth2.TokenSource
	file    *TokenFile
	last    string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(context.Background(), instrumentation.OAuthResultFailure)
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.metrics.RecordOAuthTokenRefresh(context.Background(), instrumentation.OAuthResultRefreshed)
		if err := s.file.Save(tok); err != nil {
			// The token is still good for this process.
			s.logger.Warn("failed to persist refreshed token", logging.Err(err))
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
