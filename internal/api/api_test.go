package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelftrack/internal/engine"
	"github.com/roach88/shelftrack/internal/store"
	"github.com/roach88/shelftrack/internal/tag"
	"github.com/roach88/shelftrack/internal/testutil"
)

const (
	shelfIdentity = "192.168.1.101"
	itemKey       = "A1B2C3D4E5F6"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewManualClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	e := engine.New(s, s,
		engine.WithClock(clock.Now),
		engine.WithEventTokens(engine.NewSequenceGenerator("tok")),
	)
	srv := httptest.NewServer(NewServer(e).Handler())
	t.Cleanup(srv.Close)
	return srv, s
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func registerShelf(t *testing.T, s *store.Store) {
	t.Helper()
	_, err := s.CreateReader(context.Background(), tag.Reader{
		Identity: shelfIdentity, Kind: tag.KindShelf, Name: "Fiction A",
	})
	require.NoError(t, err)
}

func TestDetectionEndToEnd(t *testing.T) {
	srv, s := newTestServer(t)
	registerShelf(t, s)

	resp := postJSON(t, srv.URL+"/api/detections", map[string]any{
		"reader_identity": shelfIdentity,
		"key":             itemKey,
		"kind":            "shelf",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	item, err := s.GetItem(context.Background(), itemKey)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, tag.StatusInLibrary, item.Status)
}

func TestDetectionErrorMapping(t *testing.T) {
	srv, s := newTestServer(t)
	registerShelf(t, s)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "missing key",
			body:   map[string]any{"reader_identity": shelfIdentity, "kind": "shelf"},
			status: http.StatusBadRequest,
			code:   "INVALID_EVENT",
		},
		{
			name:   "unknown reader",
			body:   map[string]any{"reader_identity": "10.0.0.9", "key": itemKey, "kind": "shelf"},
			status: http.StatusUnprocessableEntity,
			code:   "UNKNOWN_READER",
		},
		{
			name:   "kind mismatch",
			body:   map[string]any{"reader_identity": shelfIdentity, "key": itemKey, "kind": "return_station"},
			status: http.StatusUnprocessableEntity,
			code:   "UNREGISTERED_READER",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/detections", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestConnectivityAndReaderListing(t *testing.T) {
	srv, s := newTestServer(t)
	registerShelf(t, s)

	resp := postJSON(t, srv.URL+"/api/detections", map[string]any{
		"reader_identity": shelfIdentity, "key": itemKey, "kind": "shelf",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/connectivity", map[string]any{
		"reader_identity": shelfIdentity, "connected": true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/readers")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Readers []readerResponse `json:"readers"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Readers, 1)
	assert.Equal(t, shelfIdentity, body.Readers[0].Identity)
	assert.True(t, body.Readers[0].Connected)
	require.Len(t, body.Readers[0].Present, 1)
	assert.Equal(t, tag.Key(itemKey), body.Readers[0].Present[0].Key)
	require.NotNil(t, body.Readers[0].Present[0].Item)
	assert.Equal(t, "Unknown", body.Readers[0].Present[0].Item.Title)
}

func TestConnectivityRequiresFlag(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/connectivity", map[string]any{
		"reader_identity": shelfIdentity,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestReaderLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/readers", map[string]any{
		"identity": shelfIdentity, "kind": "shelf", "name": "Fiction A",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Duplicate identity conflicts.
	resp = postJSON(t, srv.URL+"/api/readers", map[string]any{
		"identity": shelfIdentity, "kind": "return_station", "name": "Lobby",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Delete under the wrong kind is not found.
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/readers/"+shelfIdentity+"?kind=return_station", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/api/readers/"+shelfIdentity+"?kind=shelf", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestItemRegistrationAndListing(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/items", map[string]any{
		"key":     itemKey,
		"title":   "The Go Programming Language",
		"authors": []string{"Alan A. A. Donovan"},
		"status":  "in_library",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created itemResponse
	decodeBody(t, resp, &created)
	assert.Equal(t, []string{"N/A"}, created.IndustryIdentifiers)

	resp = postJSON(t, srv.URL+"/api/items", map[string]any{
		"key": itemKey, "title": "Duplicate", "authors": []string{"X"}, "status": "borrowed",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/items")
	require.NoError(t, err)
	var body struct {
		Items []itemResponse `json:"items"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "The Go Programming Language", body.Items[0].Title)
	require.Len(t, body.Items[0].Log, 1)
	assert.Equal(t, "manually registered with status 'in_library'", body.Items[0].Log[0].Message)
}

func TestRejectsUnknownFields(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/detections", map[string]any{
		"reader_identity": shelfIdentity, "key": itemKey, "kind": "shelf", "extra": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
