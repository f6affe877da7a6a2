package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoledger/tempod/internal/domain"
)

type captureWriter struct {
	path        string
	contentType string
	data        []byte
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	w.path = path
	w.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.data = b
	return nil
}

type fakeArchiveStore struct {
	events  []domain.LedgerEvent
	deleted int64
}

func (s *fakeArchiveStore) ListEventsBefore(_ context.Context, before time.Time) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	for _, ev := range s.events {
		if ev.CreatedAt.Before(before) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeArchiveStore) DeleteEventsBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.LedgerEvent
	for _, ev := range s.events {
		if ev.CreatedAt.Before(before) {
			s.deleted++
		} else {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	return s.deleted, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveEvents(t *testing.T) {
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	counterparty := domain.Identity("acct-2")
	store := &fakeArchiveStore{events: []domain.LedgerEvent{
		{
			ID:         "ev-1",
			Type:       domain.EventMintTo,
			Mint:       "mint-1",
			Account:    "acct-1",
			Authority:  "alice",
			Amount:     100,
			NewBalance: 100,
			CreatedAt:  cutoff.Add(-48 * time.Hour),
		},
		{
			ID:           "ev-2",
			Type:         domain.EventTransfer,
			Mint:         "mint-1",
			Account:      "acct-1",
			Counterparty: &counterparty,
			Authority:    "alice",
			Amount:       40,
			NewBalance:   60,
			CreatedAt:    cutoff.Add(-24 * time.Hour),
		},
		{
			ID:        "ev-3",
			Type:      domain.EventBurn,
			Mint:      "mint-1",
			Account:   "acct-1",
			Authority: "alice",
			CreatedAt: cutoff.Add(time.Hour), // after cutoff, stays live
		},
	}}
	w := &captureWriter{}

	a := NewArchiver(w, store, testLogger())
	count, err := a.ArchiveEvents(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, "archive/events/2025-02.jsonl", w.path)
	assert.Equal(t, "application/x-ndjson", w.contentType)

	lines := strings.Split(strings.TrimSpace(string(w.data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "ev-1", first["id"])
	assert.Equal(t, "mint_to", first["type"])
	assert.NotContains(t, first, "counterparty")

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "acct-2", second["counterparty"])
}

func TestArchiveEventsEmpty(t *testing.T) {
	w := &captureWriter{}
	a := NewArchiver(w, &fakeArchiveStore{}, testLogger())

	count, err := a.ArchiveEvents(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, w.path, "no upload for an empty batch")
}

func TestPrune(t *testing.T) {
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeArchiveStore{events: []domain.LedgerEvent{
		{ID: "ev-1", CreatedAt: cutoff.Add(-time.Hour)},
		{ID: "ev-2", CreatedAt: cutoff.Add(time.Hour)},
	}}

	a := NewArchiver(&captureWriter{}, store, testLogger())
	deleted, err := a.Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	require.Len(t, store.events, 1)
	assert.Equal(t, "ev-2", store.events[0].ID)
}
