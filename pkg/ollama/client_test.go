package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, models map[string]bool, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/api/show":
			var req api.ShowRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if !models[req.Model] {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"model not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{}`))
		case "/api/chat":
			var req api.ChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 1)
			require.Len(t, req.Messages[0].Images, 1)
			resp := api.ChatResponse{Model: req.Model, Message: api.Message{Role: "assistant", Content: reply}, Done: true}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost")
	assert.Error(t, err)

	_, err = NewClient("http://localhost:11434/api/chat")
	assert.NoError(t, err)
}

func TestPing(t *testing.T) {
	srv := newServer(t, map[string]bool{"llava": true}, "")
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	assert.NoError(t, c.Ping(context.Background(), "llava"))
	assert.Error(t, c.Ping(context.Background(), "missing"))
}

func TestSimpleQuery(t *testing.T) {
	srv := newServer(t, nil, `{"poses": []}`)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	reply, err := c.SimpleQuery(context.Background(), "llava", "find people", "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, `{"poses": []}`, reply)
}

func TestSimpleQueryRejectsBadBase64(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.SimpleQuery(context.Background(), "llava", "p", "%%%")
	assert.Error(t, err)
}

func TestSimpleQueryEmptyReply(t *testing.T) {
	srv := newServer(t, nil, "")
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.SimpleQuery(context.Background(), "llava", "p", "aGVsbG8=")
	assert.Error(t, err)
}
