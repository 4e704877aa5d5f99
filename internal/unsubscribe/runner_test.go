package unsubscribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/listunsub/internal/logging"
	"github.com/teemow/listunsub/internal/store"
)

type runnerFixture struct {
	provider *fakeProvider
	store    *store.SQLiteStore
	out      *bytes.Buffer
	runner   *Runner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(context.Background(), filepath.Join(dir, "unsubscribed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	provider := newFakeProvider()
	out := &bytes.Buffer{}
	return &runnerFixture{
		provider: provider,
		store:    st,
		out:      out,
		runner: &Runner{
			Scanner: &Scanner{Provider: provider, BlacklistPath: filepath.Join(dir, "blacklist.txt"), NewerThan: "1y"},
			Sender:  &Sender{Provider: provider, From: "me@example.com"},
			Store:   st,
			Out:     out,
		},
	}
}

func (f *runnerFixture) targets(t *testing.T) []string {
	t.Helper()
	rows, err := f.store.List(context.Background())
	require.NoError(t, err)
	var out []string
	for _, r := range rows {
		out = append(out, r.MailtoLink)
	}
	return out
}

func TestRunnerTwoPages(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.addPage("", "T", message("M1", unsubHeader("<mailto:a@example.com?subject=Stop>")))
	f.provider.addPage("T", "", message("M2", mailboxHeader("Subject", "no list header")))

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Pages: 2, Messages: 2, Sent: 1, Skipped: 1}, res)
	assert.Equal(t, "Unsubscribed from 'a@example.com'\nTotal mail lists unsubscribed: 1\n", f.out.String())
	assert.Equal(t, []string{"mailto:a@example.com?subject=Stop"}, f.targets(t))

	require.Len(t, f.provider.sent, 1)
	sent := decodeSent(t, f.provider.sent[0])
	assert.Equal(t, "a@example.com", sent.To)
	assert.Equal(t, "Stop", sent.Subject)
	assert.Equal(t, "me@example.com", sent.From)
}

func TestRunnerIsIdempotent(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.addPage("", "",
		message("M1", unsubHeader("<mailto:a@example.com>")),
		message("M2", unsubHeader("<https://x.example/u>, <mailto:b@example.com?subject=bye>")),
	)
	ctx := context.Background()

	first, err := f.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Sent)

	f.out.Reset()
	second, err := f.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 2, second.Skipped)
	assert.Empty(t, f.out.String())
	assert.Len(t, f.provider.sent, 2)
	assert.Len(t, f.targets(t), 2)
}

func TestRunnerSkipsRegisteredTarget(t *testing.T) {
	f := newRunnerFixture(t)
	require.NoError(t, f.store.Register(context.Background(), "mailto:a@example.com?subject=Stop"))
	f.provider.addPage("", "", message("M1", unsubHeader("<mailto:a@example.com?subject=Stop>")))

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Empty(t, f.provider.sent)
	assert.Empty(t, f.out.String())
}

func TestRunnerDuplicateTargetInOnePass(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.addPage("", "",
		message("M1", unsubHeader("<mailto:a@example.com>")),
		message("M2", unsubHeader("<mailto:a@example.com>")),
	)

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, f.provider.sent, 1)
}

func TestRunnerDefaultSubject(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.addPage("", "", message("M1", unsubHeader("<mailto:a@example.com>")))

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, f.provider.sent, 1)
	assert.Equal(t, DefaultSubject, decodeSent(t, f.provider.sent[0]).Subject)
}

func TestRunnerConfiguredDefaultSubject(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.DefaultSubject = "remove me"
	f.provider.addPage("", "", message("M1", unsubHeader("<mailto:a@example.com>")))

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, f.provider.sent, 1)
	assert.Equal(t, "remove me", decodeSent(t, f.provider.sent[0]).Subject)
}

func TestRunnerSendFailureIsNotRegistered(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.sendErr = errors.New("rejected")
	f.provider.addPage("", "", message("M1", unsubHeader("<mailto:a@example.com>")))

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Pages: 1, Messages: 1, Failed: 1}, res)
	assert.Empty(t, f.targets(t))
	assert.Empty(t, f.out.String())
}

func TestRunnerInvalidTargetIsSkipped(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.addPage("", "", message("M1", unsubHeader("<mailto:>")))

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, f.provider.sent)
}

func TestRunnerListErrorIsFatal(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.listErr = errors.New("backend unavailable")

	_, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, f.provider.listErr)
}

func TestRunnerGetErrorIsFatal(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.addPage("", "", message("M1", unsubHeader("<mailto:a@example.com>")))
	f.provider.getErr = errors.New("not found")

	res, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, f.provider.getErr)
	assert.Equal(t, 0, res.Sent)
}

func TestRunnerCanceledContext(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.addPage("", "", message("M1", unsubHeader("<mailto:a@example.com>")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.provider.sent)
}

func TestRunnerHeaderInjectionTargetIsSkippedEveryRun(t *testing.T) {
	f := newRunnerFixture(t)
	f.provider.addPage("", "", message("M1", unsubHeader("<mailto:x%0D%0ABcc:victim@example.com>")))
	ctx := context.Background()

	for range 2 {
		res, err := f.runner.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, Result{Pages: 1, Messages: 1, Skipped: 1}, res)
	}
	assert.Empty(t, f.provider.sent)
	assert.Empty(t, f.targets(t))
}

func TestRunnerLogsOperationAndHeader(t *testing.T) {
	f := newRunnerFixture(t)
	var logs bytes.Buffer
	f.runner.Logger = slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.provider.addPage("", "", message("M1", unsubHeader("<https://x.example/u>")))

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	var record map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		require.NoError(t, json.Unmarshal(line, &record))
		if record["msg"] == "no mailto unsubscribe target" {
			break
		}
		record = nil
	}
	require.NotNil(t, record, "expected a log record for the skipped message")
	assert.Equal(t, OperationRun, record[logging.KeyOperation])
	assert.Equal(t, "M1", record[logging.KeyMessageID])
	assert.Equal(t, "<https://x.example/u>", record["list_unsubscribe"])
}
