package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/listunsub/internal/instrumentation"
)

// fakeGmail serves the subset of the Gmail REST API used by Client.
type fakeGmail struct {
	mu      sync.Mutex
	queries []string
	sent    [][]byte
}

func (f *fakeGmail) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"emailAddress": "me@example.com"})
	})

	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		f.mu.Unlock()

		switch r.URL.Query().Get("pageToken") {
		case "":
			writeJSON(w, map[string]any{
				"messages":      []map[string]string{{"id": "m1"}, {"id": "m2"}},
				"nextPageToken": "page-2",
			})
		case "page-2":
			writeJSON(w, map[string]any{
				"messages": []map[string]string{{"id": "m3"}},
			})
		default:
			writeError(w, http.StatusBadRequest, "Invalid pageToken")
		}
	})

	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		if r.PathValue("id") != "m1" {
			writeError(w, http.StatusNotFound, "Requested entity was not found.")
			return
		}
		writeJSON(w, map[string]any{
			"id": "m1",
			"payload": map[string]any{
				"headers": []map[string]string{
					{"name": "From", "value": "news@example.com"},
					{"name": "List-Unsubscribe", "value": "<mailto:unsub@example.com?subject=Stop>"},
				},
			},
		})
	})

	mux.HandleFunc("POST /gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Raw string `json:"raw"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		raw, err := base64.URLEncoding.DecodeString(body.Raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "raw is not base64url")
			return
		}
		if len(raw) == 0 {
			writeError(w, http.StatusBadRequest, "Invalid to header")
			return
		}
		f.mu.Lock()
		f.sent = append(f.sent, raw)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"id": "sent-1"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg},
	})
}

func newTestClient(t *testing.T) (*Client, *fakeGmail) {
	t.Helper()
	fake := &fakeGmail{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), &instrumentation.Metrics{},
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return client, fake
}

func TestClient_ListPagePagination(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	page, err := client.ListPage(ctx, "newer_than:1y -from:boss@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, page.MessageIDs)
	assert.Equal(t, "page-2", page.NextPageToken)

	page, err = client.ListPage(ctx, "newer_than:1y -from:boss@example.com", page.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3"}, page.MessageIDs)
	assert.Empty(t, page.NextPageToken)

	assert.Equal(t, []string{
		"newer_than:1y -from:boss@example.com",
		"newer_than:1y -from:boss@example.com",
	}, fake.queries)
}

func TestClient_ListPageError(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.ListPage(context.Background(), "newer_than:1y", "bogus")
	require.Error(t, err)

	var gerr *googleapi.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusBadRequest, gerr.Code)
}

func TestClient_GetMessage(t *testing.T) {
	client, _ := newTestClient(t)

	msg, err := client.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "<mailto:unsub@example.com?subject=Stop>", msg.HeaderValue("list-unsubscribe"))
}

func TestClient_GetMessageNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetMessage(context.Background(), "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")

	var gerr *googleapi.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusNotFound, gerr.Code)
}

func TestClient_SendRaw(t *testing.T) {
	client, fake := newTestClient(t)

	raw := []byte("To: unsub@example.com\r\nSubject: unsubscribe\r\n\r\nplease")
	require.NoError(t, client.SendRaw(context.Background(), raw))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, raw, fake.sent[0])

	assert.Error(t, client.SendRaw(context.Background(), nil))
}

func TestClient_EmailAddress(t *testing.T) {
	client, _ := newTestClient(t)

	addr, err := client.EmailAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", addr)
}
