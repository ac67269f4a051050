// Package nosql implements the NoSQL-collection ingestor's Stage 1
// (Fetch/Extract): load a batch of already-fetched documents (each a flat
// string-keyed map, matching how a document-store SDK decodes a record)
// into a project-scoped relational table, and produce a flattened textual
// rendering of the same batch for the shared finisher.
//
// There is no document-database client in this module's dependency set
// (the original source's equivalent ingestor authenticates against
// Firestore directly), so this package takes the batch as already fetched
// rather than performing that fetch itself — see DESIGN.md for the
// reasoning. Grounded on original_source's
// crates/lib/src/ingest/firebase.rs: infer schema from the batch, create
// the table if absent, insert rows, one column per key seen.
package nosql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/anyrag-go/ragcore/internal/ingest"
	"github.com/anyrag-go/ragcore/internal/ragerr"
)

// ProjectStore is the narrow capability this ingestor needs from a
// project-scoped relational store. internal/storage.PostgresProjectStore
// satisfies this.
type ProjectStore interface {
	EnsureTable(ctx context.Context, tableName string, columns []string) error
	InsertRow(ctx context.Context, tableName string, row map[string]string) error
}

// Options bundles the project-table destination alongside the shared
// ingest.Options every source type needs.
type Options struct {
	ingest.Options
	Project   ProjectStore
	TableName string
}

// inferColumns returns the sorted union of keys across documents, matching
// firebase.rs's infer_schema_from_documents: every key seen anywhere in the
// batch becomes a column, so a row missing a key simply inserts an empty
// string for it.
func inferColumns(documents []map[string]string) []string {
	seen := make(map[string]struct{})
	for _, doc := range documents {
		for k := range doc {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

// Ingest loads documents into opts.TableName (creating it if absent, with
// one TEXT column per key seen across the batch) and then funnels a
// flattened textual rendering of the same batch through the shared
// finisher's Restructure+Persist stages, so the collection's content is
// hybrid-searchable exactly like any other ingested source. collectionName
// heads the flattened text and forms part of the finisher's source URL key
// (nosql://<collectionName>/<table>); it does not need to resolve to
// anything.
func Ingest(ctx context.Context, opts Options, collectionName string, documents []map[string]string) (ingest.Result, error) {
	if len(documents) == 0 {
		return ingest.Result{Source: collectionName}, nil
	}

	columns := inferColumns(documents)
	if err := opts.Project.EnsureTable(ctx, opts.TableName, columns); err != nil {
		return ingest.Result{}, fmt.Errorf("%w: preparing project table %s: %v", ragerr.ErrDatabase, opts.TableName, err)
	}

	for i, doc := range documents {
		row := make(map[string]string, len(columns))
		for _, c := range columns {
			row[c] = doc[c]
		}
		if err := opts.Project.InsertRow(ctx, opts.TableName, row); err != nil {
			return ingest.Result{}, fmt.Errorf("%w: inserting document %d into %s: %v", ragerr.ErrDatabase, i, opts.TableName, err)
		}
	}

	rawText := flatten(collectionName, columns, documents)
	sourceURL := fmt.Sprintf("nosql://%s/%s", collectionName, opts.TableName)
	return ingest.Finish(ctx, opts.Options, sourceURL, nil, rawText)
}

// flatten renders a document batch as "key: value" lines grouped per
// document, the raw text the restructure prompt turns into canonical
// sections — the same role the Sheet ingestor's raw CSV plays.
func flatten(collectionName string, columns []string, documents []map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Collection: %s\n\n", collectionName)
	for i, doc := range documents {
		fmt.Fprintf(&b, "Document %d:\n", i+1)
		for _, c := range columns {
			if v := doc[c]; v != "" {
				fmt.Fprintf(&b, "  %s: %s\n", c, v)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
