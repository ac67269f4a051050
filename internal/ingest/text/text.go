// Package text implements the raw-text ingestor: the input is already the
// extracted text (§4.C "the input is already the text"), so Stage 1 is a
// no-op and the payload is handed straight to the shared finisher.
package text

import (
	"context"

	"github.com/anyrag-go/ragcore/internal/ingest"
)

// Ingest hands rawText directly to the shared Restructure+Persist finisher
// under sourceIdentifier, which the spec's payload shape calls "source".
func Ingest(ctx context.Context, opts ingest.Options, sourceIdentifier, rawText string, owner *string) (ingest.Result, error) {
	return ingest.Finish(ctx, opts, sourceIdentifier, owner, rawText)
}
