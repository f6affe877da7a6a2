package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tempoledger/tempod/internal/domain"
)

// Archiver moves aged change records out of the primary store: it queries all
// records before a cutoff, serializes them to JSONL, and uploads the batch to
// object storage.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed by ArchiveEvents -- Prune is a separate, explicit step to be
// executed after the archive has been verified.
type Archiver struct {
	writer domain.BlobWriter
	events domain.EventArchiveStore
	logger *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, events domain.EventArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		events: events,
		logger: logger,
	}
}

// archiveRecord is the JSONL row format for an archived change record. It is
// kept separate from domain.LedgerEvent so archive files stay stable if the
// domain type evolves.
type archiveRecord struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Mint         string  `json:"mint"`
	Account      string  `json:"account"`
	Counterparty string  `json:"counterparty,omitempty"`
	Authority    string  `json:"authority"`
	Amount       uint64  `json:"amount"`
	NewBalance   uint64  `json:"new_balance"`
	PoolBalance  *uint64 `json:"pool_balance,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// ArchiveEvents queries all change records before the cutoff, serializes them
// to JSONL, and uploads the file at archive/events/YYYY-MM.jsonl. Returns the
// count of archived records.
func (a *Archiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListEventsBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	records := make([]archiveRecord, 0, len(events))
	for _, ev := range events {
		rec := archiveRecord{
			ID:          ev.ID,
			Type:        string(ev.Type),
			Mint:        string(ev.Mint),
			Account:     string(ev.Account),
			Authority:   string(ev.Authority),
			Amount:      ev.Amount,
			NewBalance:  ev.NewBalance,
			PoolBalance: ev.PoolBalance,
			CreatedAt:   ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if ev.Counterparty != nil {
			rec.Counterparty = string(*ev.Counterparty)
		}
		records = append(records, rec)
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	count := int64(len(records))
	a.logger.InfoContext(ctx, "s3blob: archived events",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before),
	)
	return count, nil
}

// Prune deletes change records before the cutoff from the primary store.
// Call only after the corresponding archive upload has been verified.
func (a *Archiver) Prune(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := a.events.DeleteEventsBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: prune events: %w", err)
	}
	if deleted > 0 {
		a.logger.InfoContext(ctx, "s3blob: pruned events",
			slog.Int64("count", deleted),
			slog.Time("before", before),
		)
	}
	return deleted, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/events/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
