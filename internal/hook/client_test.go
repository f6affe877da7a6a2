package hook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoledger/tempod/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvoke(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, discardLogger())
	err := c.Invoke(context.Background(), domain.HookRequest{
		HookID:    "hook-1",
		Mint:      "mint-1",
		Account:   "acct-1",
		Authority: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "/hooks/hook-1", gotPath)
	assert.Equal(t, "mint-1", gotBody["mint"])
	assert.Equal(t, "acct-1", gotBody["account"])
	assert.Equal(t, "alice", gotBody["authority"])
}

func TestInvokeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "policy veto", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, discardLogger())
	err := c.Invoke(context.Background(), domain.HookRequest{HookID: "hook-1"})
	assert.ErrorIs(t, err, domain.ErrHookFailed)
}

func TestInvokeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second, discardLogger())
	err := c.Invoke(context.Background(), domain.HookRequest{HookID: "hook-1"})
	assert.ErrorIs(t, err, domain.ErrHookFailed)
}
