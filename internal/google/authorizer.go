package google

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Authorizer obtains a fresh token when no usable persisted token exists.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// Authorization modes selectable by configuration.
const (
	ModeInteractive = "interactive"
	ModeHeadless    = "headless"
)

// HeadlessAuthorizer never prompts. It is meant for scheduled runs that
// rely on a token created earlier with the login command.
type HeadlessAuthorizer struct{}

// Authorize always fails with ErrNoToken.
func (HeadlessAuthorizer) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	return nil, fmt.Errorf("%w; run the login command interactively first", ErrNoToken)
}

// DefaultRedirectTimeout is how long the interactive flow waits for the
// browser redirect before asking for the code on the terminal.
const DefaultRedirectTimeout = 2 * time.Minute

// InteractiveAuthorizer runs the installed-app consent flow. It listens on
// a random loopback port for the redirect and falls back to reading the
// code (or the full redirect URL) from In.
type InteractiveAuthorizer struct {
	// In is read for the manual code fallback.
	In io.Reader
	// Out receives the instructions shown to the user.
	Out io.Writer
	// OpenBrowser opens the consent URL. Nil skips opening a browser.
	OpenBrowser func(url string) error
	// RedirectTimeout defaults to DefaultRedirectTimeout.
	RedirectTimeout time.Duration
}

type authResult struct {
	code string
	err  error
}

// Authorize runs the consent flow and exchanges the resulting code.
func (a *InteractiveAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	// Work on a copy so the caller's RedirectURL is untouched.
	flow := *cfg

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(a.Out, "Cannot listen on loopback (%v); falling back to manual code entry.\n", err)
		return a.manual(ctx, &flow, state, verifier)
	}
	flow.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)

	resCh := make(chan authResult, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           redirectHandler(state, resCh),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	authURL := flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))
	fmt.Fprintln(a.Out, "A browser window will open. If it does not, open this URL:")
	fmt.Fprintln(a.Out, authURL)
	fmt.Fprintf(a.Out, "Waiting for redirect on %s ...\n", flow.RedirectURL)
	if a.OpenBrowser != nil {
		if err := a.OpenBrowser(authURL); err != nil {
			fmt.Fprintf(a.Out, "Could not open browser: %v\n", err)
		}
	}

	timeout := a.RedirectTimeout
	if timeout <= 0 {
		timeout = DefaultRedirectTimeout
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return nil, r.err
		}
		return exchange(ctx, &flow, r.code, verifier)
	case <-time.After(timeout):
		fmt.Fprintln(a.Out, "Timeout waiting for redirect; falling back to manual code entry.")
		return a.manual(ctx, &flow, state, verifier)
	}
}

func (a *InteractiveAuthorizer) manual(ctx context.Context, cfg *oauth2.Config, state, verifier string) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))
	fmt.Fprintln(a.Out, "Open this URL in your browser to authorize access:")
	fmt.Fprintln(a.Out, authURL)
	fmt.Fprintln(a.Out, "Paste the authorization code or the full redirect URL, then press Enter.")
	fmt.Fprint(a.Out, "> ")

	sc := bufio.NewScanner(a.In)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read authorization code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}

	code, err := codeFromInput(sc.Text())
	if err != nil {
		return nil, err
	}
	return exchange(ctx, cfg, code, verifier)
}

func redirectHandler(state string, resCh chan<- authResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Authorization was denied.", http.StatusForbidden)
			deliver(resCh, authResult{err: fmt.Errorf("authorization denied: %s", e)})
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		deliver(resCh, authResult{code: code})
	})
}

func deliver(resCh chan<- authResult, r authResult) {
	select {
	case resCh <- r:
	default:
	}
}

// codeFromInput accepts either a bare code or a pasted redirect URL.
func codeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}

func exchange(ctx context.Context, cfg *oauth2.Config, code, verifier string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewAuthorizer returns the Authorizer for mode.
func NewAuthorizer(mode string, in io.Reader, out io.Writer) (Authorizer, error) {
	switch mode {
	case ModeInteractive, "":
		return &InteractiveAuthorizer{In: in, Out: out, OpenBrowser: OpenBrowser}, nil
	case ModeHeadless:
		return HeadlessAuthorizer{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q, must be one of: interactive, headless", mode)
	}
}
