// Package uploads moves transcript bytes to object storage. The client side
// PUTs to a pre-signed URL; the stand-in backend side issues those URLs.
package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"saintplus-client/internal/ingestion"
	"saintplus-client/internal/shared/telemetry"
)

// Transfer PUTs raw file bytes to a pre-signed URL. It never attaches the
// session credential; the URL itself is the authorization.
type Transfer struct {
	client *http.Client
}

// NewTransfer returns a Transfer using client, or http.DefaultClient when nil.
func NewTransfer(client *http.Client) *Transfer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transfer{client: client}
}

// Transfer implements ingestion.Storage.
func (t *Transfer) Transfer(ctx context.Context, uploadURL string, file ingestion.SourceFile) error {
	ctx, span := otel.Tracer("saintplus-client/uploads").Start(ctx, "uploads.transfer")
	defer span.End()
	span.SetAttributes(attribute.Int("size_bytes", len(file.Content)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(file.Content))
	if err != nil {
		span.SetStatus(codes.Error, "build request")
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.ContentLength = int64(len(file.Content))
	if file.ContentType != "" {
		req.Header.Set("Content-Type", file.ContentType)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("transfer to storage: %w", err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, resp.Status)
		telemetry.Warn("uploads.transfer.rejected", map[string]any{
			"status": resp.StatusCode,
			"body":   string(snippet),
		})
		return fmt.Errorf("storage rejected upload: status %d", resp.StatusCode)
	}
	telemetry.Debug("uploads.transfer.ok", map[string]any{"size_bytes": len(file.Content)})
	return nil
}

var _ ingestion.Storage = (*Transfer)(nil)
