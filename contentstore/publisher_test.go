package contentstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef(t *testing.T) {
	assert.Equal(t, "ipfs://bafkreiexample", Ref("bafkreiexample"))
}

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()

	doc := map[string]string{"title": "Rezone the northern district"}
	ref, err := p.Publish(context.Background(), doc)
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	// Same content, same reference.
	again, err := p.Publish(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	other, err := p.Publish(context.Background(), map[string]string{"title": "different"})
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)

	stored, ok := p.Get(ref)
	require.True(t, ok)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(stored, &decoded))
	assert.Equal(t, doc, decoded)

	_, ok = p.Get("missing")
	assert.False(t, ok)
}

func TestHTTPPublisher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v0/add", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("pin"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "proposal.json", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{"Hash": "bafkreiuploaded"})
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.URL, 5*time.Second, zerolog.Nop())
	ref, err := p.Publish(context.Background(), map[string]string{"title": "t"})
	require.NoError(t, err)
	assert.Equal(t, "bafkreiuploaded", ref)
}

func TestHTTPPublisherErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "backend down", http.StatusBadGateway)
		}))
		defer srv.Close()

		p := NewHTTPPublisher(srv.URL, 5*time.Second, zerolog.Nop())
		_, err := p.Publish(context.Background(), map[string]string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("empty reference", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"Hash": ""})
		}))
		defer srv.Close()

		p := NewHTTPPublisher(srv.URL, 5*time.Second, zerolog.Nop())
		_, err := p.Publish(context.Background(), map[string]string{})
		require.Error(t, err)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		p := NewHTTPPublisher("http://127.0.0.1:1", time.Second, zerolog.Nop())
		_, err := p.Publish(context.Background(), map[string]string{})
		require.Error(t, err)
	})
}
