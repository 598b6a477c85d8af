package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "small-model", req.Model)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(response{
			Choices: []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}{{Message: struct {
				Content string `json:"content"`
			}{Content: "ok"}}},
		})
	}))
	defer srv.Close()

	c := New(srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := c.Complete(ctx, srv.URL, "small-model", []Message{{Role: RoleUser, Content: "hi"}}, 128, 1)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestCompleteNon200IsRetriedThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Complete(ctx, srv.URL, "m", nil, 16, 2)
	require.Error(t, err)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestCompleteMalformedJSONIsPermanent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Complete(ctx, srv.URL, "m", nil, 16, 3)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "malformed JSON should not be retried")
}
