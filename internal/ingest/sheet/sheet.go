// Package sheet implements the spreadsheet ingestor's Stage 1
// (Fetch/Extract): derive the canonical CSV export URL from a Google
// Sheets URL and download it as raw text. Grounded on §6's Sheet URL
// transform rule and the teacher's internal/fetch.go HTTP-get shape.
package sheet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/anyrag-go/ragcore/internal/ingest"
	"github.com/anyrag-go/ragcore/internal/ragerr"
)

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9-_]+)`)

// ExtractID returns the spreadsheet ID embedded in a Google Sheets URL, or
// ok=false if none is found.
func ExtractID(sheetURL string) (string, bool) {
	m := sheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// TableName is the canonical table name a sheet's rows are loaded into:
// "spreadsheets_<id with '-' replaced by '_'>".
func TableName(sheetID string) string {
	return "spreadsheets_" + strings.ReplaceAll(sheetID, "-", "_")
}

// CSVExportURL builds the canonical CSV export URL for sheetID, preserving
// the authority (scheme+host) of sourceURL — this lets tests point at a
// localhost fixture server instead of the real docs.google.com host.
func CSVExportURL(sourceURL, sheetID string) string {
	authority := "https://docs.google.com"
	if parsed, err := url.Parse(sourceURL); err == nil && parsed.Host != "" {
		authority = parsed.Scheme + "://" + parsed.Host
	}
	return fmt.Sprintf("%s/spreadsheets/d/%s/export?format=csv", authority, sheetID)
}

// Fetch downloads sheetURL's canonical CSV export and returns its raw text.
// The raw CSV is the Stage 1 output (§4.C: "the raw CSV is the input
// text") — restructuring into canonical YAML happens in Stage 2.
func Fetch(ctx context.Context, sheetURL string) (string, error) {
	id, ok := ExtractID(sheetURL)
	if !ok {
		return "", fmt.Errorf("%w: %q does not contain a spreadsheet id", ragerr.ErrParse, sheetURL)
	}

	exportURL := CSVExportURL(sheetURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request for %s: %v", ragerr.ErrFetch, exportURL, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ragerr.ErrFetch, exportURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d", ragerr.ErrFetch, exportURL, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading CSV from %s: %v", ragerr.ErrFetch, exportURL, err)
	}
	return string(raw), nil
}

// Ingest runs the full spreadsheet pipeline: fetch the CSV (Stage 1), then
// hand it to the shared finisher (Stages 2-3).
func Ingest(ctx context.Context, opts ingest.Options, sheetURL string, owner *string) (ingest.Result, error) {
	csv, err := Fetch(ctx, sheetURL)
	if err != nil {
		return ingest.Result{}, err
	}
	return ingest.Finish(ctx, opts, sheetURL, owner, csv)
}
