package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the local mirrors for
// aged records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	trades domain.TradeStore
	orders domain.OrderStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, trades domain.TradeStore, orders domain.OrderStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		trades: trades,
		orders: orders,
	}
}

// ArchiveTrades queries all mirrored trades settled before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/trades/YYYY-MM.jsonl. It returns the uploaded path and the record
// count; zero records means no upload and an empty path.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (string, int, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return "", 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return "", 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}
	return path, len(trades), nil
}

// ArchiveOrders queries all mirrored orders placed before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/orders/YYYY-MM.jsonl.
func (a *ArchiveImpl) ArchiveOrders(ctx context.Context, before time.Time) (string, int, error) {
	orders, err := a.orders.ListBefore(ctx, before)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return "", 0, nil
	}

	buf, err := marshalJSONL(orders)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath("orders", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return "", 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}
	return path, len(orders), nil
}

// multipartThreshold is the payload size above which archives go through the
// multipart uploader instead of a single PutObject.
const multipartThreshold = 32 * 1024 * 1024

func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	if mp, ok := a.writer.(interface {
		PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
	}); ok && len(buf) > multipartThreshold {
		return mp.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/trades/2025-01.jsonl
//	archive/orders/2025-01.jsonl
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
