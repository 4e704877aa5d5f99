package unsubscribe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/teemow/listunsub/internal/mailbox"
)

// DefaultNewerThan is the search window used when none is configured.
const DefaultNewerThan = "1y"

// Scanner lists candidate messages. The search query is rebuilt from the
// blacklist file on every page request, so edits to the file take effect
// on the next page.
type Scanner struct {
	Provider mailbox.Provider
	// BlacklistPath holds one raw search term per line, usually an
	// exclusion such as "-from:boss@example.com".
	BlacklistPath string
	// NewerThan is the Gmail newer_than window, e.g. "1y" or "6m".
	NewerThan string
}

// BuildQuery joins the search window and the blacklist terms into a Gmail
// search expression.
func BuildQuery(newerThan string, patterns []string) string {
	if newerThan == "" {
		newerThan = DefaultNewerThan
	}
	return "newer_than:" + newerThan + " " + strings.Join(patterns, " ")
}

// ReadBlacklist returns the trimmed lines of the file at path. Blank lines
// are kept. A missing file yields no patterns.
func ReadBlacklist(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blacklist: %w", err)
	}
	defer f.Close()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		patterns = append(patterns, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blacklist: %w", err)
	}
	return patterns, nil
}

// Query reads the blacklist and returns the current search expression.
func (s *Scanner) Query() (string, error) {
	patterns, err := ReadBlacklist(s.BlacklistPath)
	if err != nil {
		return "", err
	}
	return BuildQuery(s.NewerThan, patterns), nil
}

// ListPage returns the page of matching messages starting at pageToken.
func (s *Scanner) ListPage(ctx context.Context, pageToken string) (*mailbox.Page, error) {
	query, err := s.Query()
	if err != nil {
		return nil, err
	}
	page, err := s.Provider.ListPage(ctx, query, pageToken)
	if err != nil {
		return nil, err
	}
	return page, nil
}
