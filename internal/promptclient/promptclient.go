// Package promptclient implements the Prompt Execution Client: a direct
// text-to-query path that turns a natural-language prompt into a readonly
// SQL query, executes it against a QueryExecutor, and optionally formats
// the result back through the LLM. Grounded on
// original_source/crates/lib/src/{lib,executor}.rs, which is the
// definitive reference for the shorthand rewrite order and prompt
// templates.
package promptclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/ingest"
	"github.com/anyrag-go/ragcore/internal/ingest/sheet"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/ragerr"
	"github.com/anyrag-go/ragcore/internal/storage"
)

// Store is the narrow storage surface this client depends on: schema
// introspection, read-only query execution, and (for on-the-fly sheet
// ingestion) the shared ingestion finisher's Store.
type Store interface {
	storage.QueryExecutor
	storage.SchemaIntrospector
	ingest.Store
}

// Options bundles one execute_prompt call's parameters, mirroring
// original_source's ExecutePromptOptions.
type Options struct {
	Prompt                     string
	TableName                  string
	Instruction                string
	AnswerKey                  string
	SystemPromptTemplate       string
	UserPromptTemplate         string
	FormatSystemPromptTemplate string
	FormatUserPromptTemplate   string
}

// Client executes natural-language prompts against a Store using gen for
// both query generation and optional response formatting.
type Client struct {
	Store Store
	Gen   ai.Generator

	// EmbeddingModel and Embedder support on-the-fly sheet ingestion,
	// which funnels through the same Finish pipeline every other
	// ingestor uses.
	Embedder       ai.Embedder
	EmbeddingModel string
}

var sheetURLPattern = regexp.MustCompile(`\S*/spreadsheets/d/\S+`)

var lsLimitPattern = regexp.MustCompile(`^limit=(\d+)$`)

// Execute runs one prompt end to end: shorthand rewrite, on-the-fly sheet
// ingestion, query generation, execution, and optional formatting.
func (c *Client) Execute(ctx context.Context, opts Options) (string, error) {
	opts = rewriteLsShorthand(opts)

	if url, ok := findSheetURL(opts.Prompt); ok {
		tableName, err := c.ensureSheetIngested(ctx, url)
		if err != nil {
			return "", err
		}
		opts.TableName = tableName
	}

	if opts.SystemPromptTemplate != "" {
		return c.Gen.Generate(ctx, opts.SystemPromptTemplate, opts.Prompt)
	}

	query, err := c.queryFromPrompt(ctx, opts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "The prompt did not result in a valid query.", nil
	}

	rows, err := c.Store.ExecuteQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: executing generated query: %v", ragerr.ErrDatabase, err)
	}

	pretty, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: formatting query result: %v", ragerr.ErrParse, err)
	}

	return c.formatResponse(ctx, string(pretty), opts)
}

// rewriteLsShorthand implements the "ls <table> [limit=N]" rewrite: always
// targets the local DB and produces a literal row-listing prompt.
func rewriteLsShorthand(opts Options) Options {
	if !strings.HasPrefix(opts.Prompt, "ls ") {
		return opts
	}

	parts := strings.Fields(opts.Prompt)
	if len(parts) < 2 {
		return opts
	}

	table := parts[1]
	limit := 10
	if len(parts) >= 3 {
		if m := lsLimitPattern.FindStringSubmatch(parts[2]); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				limit = n
			}
		}
	}

	opts.TableName = table
	opts.Prompt = fmt.Sprintf("List the first %d rows from the '%s' table, showing all columns", limit, table)
	return opts
}

func findSheetURL(prompt string) (string, bool) {
	for _, word := range strings.Fields(prompt) {
		if sheetURLPattern.MatchString(word) {
			return word, true
		}
	}
	return "", false
}

// ensureSheetIngested ingests the sheet's CSV into its derived table if
// that table doesn't already exist, reusing the same ExtractID/TableName
// helpers and Finish pipeline every other ingestor routes through.
func (c *Client) ensureSheetIngested(ctx context.Context, sheetURL string) (string, error) {
	id, ok := sheet.ExtractID(sheetURL)
	if !ok {
		return "", fmt.Errorf("%w: %q does not contain a spreadsheet id", ragerr.ErrParse, sheetURL)
	}
	tableName := sheet.TableName(id)

	if _, err := c.Store.GetTableSchema(ctx, tableName); err == nil {
		logging.Info("promptclient: sheet table already exists, skipping ingestion", "table", tableName)
		return tableName, nil
	}

	logging.Info("promptclient: ingesting sheet on the fly", "table", tableName)
	_, err := sheet.Ingest(ctx, ingest.Options{
		Store:          c.Store,
		Gen:            c.Gen,
		Embedder:       c.Embedder,
		EmbeddingModel: c.EmbeddingModel,
	}, sheetURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: on-the-fly sheet ingestion: %v", ragerr.ErrDatabase, err)
	}
	return tableName, nil
}

const defaultQuerySystemPrompt = "You are a SQL expert. Write a readonly SQL query that answers the user's question. Expected output is a single SQL query only."

const defaultQueryUserTemplate = `Follow these rules to create a production-grade query:
1. For questions about "who", "what", or "list", use DISTINCT to avoid duplicate results.
2. When filtering, always explicitly exclude NULL values.
3. For keyword searches, check the keyword across all plausible text columns based on the schema.

{alias_instruction}

Use the provided table schema to ensure the query is correct. Do not use placeholders for table or column names.

# Context
{context}

# User question
{prompt}`

var fencedQueryPattern = regexp.MustCompile("(?s)```(?:sql|query)?\\n?(.*?)```")

func (c *Client) queryFromPrompt(ctx context.Context, opts Options) (string, error) {
	var context_ string
	if opts.TableName != "" {
		cols, err := c.Store.GetTableSchema(ctx, opts.TableName)
		if err != nil {
			return "", fmt.Errorf("%w: reading schema for %s: %v", ragerr.ErrNotFound, opts.TableName, err)
		}
		context_ = fmt.Sprintf("Schema for `%s`: (%s). ", opts.TableName, formatSchema(cols))
	}

	aliasInstruction := "If the query uses an aggregate function or returns a single column, choose a descriptive, single-word, lowercase alias for the result based on the user's question."
	if opts.AnswerKey != "" {
		aliasInstruction = fmt.Sprintf("If the query uses an aggregate function or returns a single column, alias the result with `AS %s`.", opts.AnswerKey)
	}

	userPrompt := opts.Prompt
	switch {
	case opts.UserPromptTemplate != "":
		userPrompt = substitute(opts.UserPromptTemplate, opts.Prompt, context_, aliasInstruction)
	case context_ != "":
		userPrompt = substitute(defaultQueryUserTemplate, opts.Prompt, context_, aliasInstruction)
	}

	raw, err := c.Gen.Generate(ctx, defaultQuerySystemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("%w: generating query: %v", ragerr.ErrLLM, err)
	}

	query := raw
	if m := fencedQueryPattern.FindStringSubmatch(raw); m != nil {
		query = strings.TrimSpace(m[1])
	} else {
		query = strings.TrimSpace(raw)
	}

	upper := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "", nil
	}
	return query, nil
}

func substitute(template, prompt, context_, aliasInstruction string) string {
	r := strings.NewReplacer(
		"{prompt}", prompt,
		"{context}", context_,
		"{alias_instruction}", aliasInstruction,
	)
	return r.Replace(template)
}

func formatSchema(cols []storage.Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s %s", c.Name, c.DataType)
	}
	return strings.Join(parts, ", ")
}

const defaultFormatSystemPrompt = "You are a helpful assistant. Answer the user's question based only on the provided data, following the output instructions. Do not add explanations not derived from the input data."

func (c *Client) formatResponse(ctx context.Context, content string, opts Options) (string, error) {
	if opts.Instruction == "" {
		return content, nil
	}

	systemPrompt := opts.FormatSystemPromptTemplate
	if systemPrompt == "" {
		systemPrompt = defaultFormatSystemPrompt
	}

	userPrompt := opts.FormatUserPromptTemplate
	if userPrompt != "" {
		userPrompt = substitute(userPrompt, opts.Prompt, content, opts.Instruction)
	} else {
		userPrompt = fmt.Sprintf("# PROMPT:\n%s\n\n# INPUT:\n%s\n\n# OUTPUT:\n%s", opts.Prompt, content, opts.Instruction)
	}

	formatted, err := c.Gen.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("%w: formatting response: %v", ragerr.ErrLLM, err)
	}
	return formatted, nil
}
