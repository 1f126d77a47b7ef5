package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/marketglass/footprintd/internal/domain"
)

// blobStore is the narrow upload surface the archiver needs. *Writer
// satisfies it.
type blobStore interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves aged footprint windows and raw trades out of the hot
// Postgres store into JSONL objects in cold storage. Rows are deleted
// only after the uploaded object is confirmed present.
type Archiver struct {
	blob    blobStore
	windows domain.WindowStore
	trades  domain.TradeStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver for the given stores.
func NewArchiver(blob *Writer, windows domain.WindowStore, trades domain.TradeStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:    blob,
		windows: windows,
		trades:  trades,
		logger:  logger.With("component", "archiver"),
	}
}

// ArchiveWindows uploads every window older than the cutoff as one JSONL
// object and deletes the archived rows. Returns the number archived.
func (a *Archiver) ArchiveWindows(ctx context.Context, symbol string, before time.Time) (int64, error) {
	rows, err := a.windows.ListBefore(ctx, symbol, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive windows query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive windows marshal: %w", err)
	}

	path := archivePath("windows", symbol, before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, err
	}

	deleted, err := a.windows.DeleteBefore(ctx, symbol, before)
	if err != nil {
		return int64(len(rows)), fmt.Errorf("s3blob: delete archived windows: %w", err)
	}

	a.logger.Info("archived windows",
		"symbol", symbol,
		"path", path,
		"uploaded", len(rows),
		"deleted", deleted,
	)
	return int64(len(rows)), nil
}

// ArchiveTrades uploads every trade older than the cutoff as one JSONL
// object and deletes the archived rows. Returns the number archived.
func (a *Archiver) ArchiveTrades(ctx context.Context, symbol string, before time.Time) (int64, error) {
	rows, err := a.trades.ListBefore(ctx, symbol, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", symbol, before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, err
	}

	deleted, err := a.trades.DeleteBefore(ctx, symbol, before)
	if err != nil {
		return int64(len(rows)), fmt.Errorf("s3blob: delete archived trades: %w", err)
	}

	a.logger.Info("archived trades",
		"symbol", symbol,
		"path", path,
		"uploaded", len(rows),
		"deleted", deleted,
	)
	return int64(len(rows)), nil
}

// upload writes the object and confirms it landed before the caller is
// allowed to delete the source rows. Objects past one part size go through
// the multipart uploader.
func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	var err error
	if int64(len(buf)) > minPartSize {
		err = a.blob.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.blob.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive upload: %w", err)
	}
	ok, err := a.blob.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: archive verify: %w", err)
	}
	if !ok {
		return fmt.Errorf("s3blob: archive verify: object %s missing after upload", path)
	}
	return nil
}

// archivePath builds the object key, partitioned by symbol and the
// year-month-day of the cutoff.
//
//	archive/windows/BTCUSDT/2026-08-25.jsonl
//	archive/trades/BTCUSDT/2026-08-25.jsonl
func archivePath(kind, symbol string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, symbol, before.Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
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
