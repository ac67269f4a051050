// Package pdf implements the PDF ingestor's Stage 1 (Fetch/Extract):
// retrieve a PDF from a local path or remote URL, concatenate per-page
// extracted text. Grounded on internal/fetch/pdf.go's local-vs-remote
// reader selection and page-by-page extraction loop.
package pdf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/anyrag-go/ragcore/internal/ingest"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/ragerr"
)

// Fetch retrieves the PDF at sourceURL (a local path, a file:// URL, or an
// http(s):// URL) and returns its concatenated per-page plain text. A page
// whose text fails to extract is skipped with a warning, not a hard error —
// partial extraction from a malformed page still beats failing ingestion of
// the whole document.
func Fetch(ctx context.Context, sourceURL string) (string, error) {
	reader, size, closeFn, err := open(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	defer closeFn()

	pdfReader, err := pdf.NewReader(reader, size)
	if err != nil {
		return "", fmt.Errorf("%w: opening PDF reader for %s: %v", ragerr.ErrParse, sourceURL, err)
	}

	var out strings.Builder
	pageCount := pdfReader.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logging.Warn("pdf: skipping page whose text failed to extract", "source_url", sourceURL, "page", i, "error", err)
			continue
		}
		out.WriteString(text)
		out.WriteString("\n\n")
	}

	return cleanText(out.String()), nil
}

func open(ctx context.Context, sourceURL string) (io.ReaderAt, int64, func(), error) {
	if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
		path := strings.TrimPrefix(sourceURL, "file://")
		file, err := os.Open(path)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%w: opening PDF file %s: %v", ragerr.ErrFetch, path, err)
		}
		stat, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, 0, nil, fmt.Errorf("%w: statting PDF file %s: %v", ragerr.ErrFetch, path, err)
		}
		return file, stat.Size(), func() { _ = file.Close() }, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: building request for %s: %v", ragerr.ErrFetch, sourceURL, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: fetching %s: %v", ragerr.ErrFetch, sourceURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, nil, fmt.Errorf("%w: %s returned status %d", ragerr.ErrFetch, sourceURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: reading PDF body from %s: %v", ragerr.ErrFetch, sourceURL, err)
	}
	reader := strings.NewReader(string(data))
	return reader, int64(len(data)), func() {}, nil
}

func cleanText(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 2 {
			kept = append(kept, trimmed)
		}
	}
	cleaned := strings.Join(kept, "\n")
	cleaned = strings.ReplaceAll(cleaned, "\n\n\n", "\n\n")
	return strings.TrimSpace(cleaned)
}

// Ingest runs the full PDF pipeline: fetch+extract (Stage 1) then hand the
// plain text to the shared finisher (Stages 2-3).
func Ingest(ctx context.Context, opts ingest.Options, sourceURL string, owner *string) (ingest.Result, error) {
	text, err := Fetch(ctx, sourceURL)
	if err != nil {
		return ingest.Result{}, err
	}
	return ingest.Finish(ctx, opts, sourceURL, owner, text)
}
