// Command ragctl is the minimal CLI entrypoint wiring the core packages
// together. Flag parsing only (stdlib flag, not cobra — CLI argument
// parsing is an external collaborator per spec §1); the real work happens
// in internal/.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/codestore"
	"github.com/anyrag-go/ragcore/internal/config"
	"github.com/anyrag-go/ragcore/internal/curator"
	"github.com/anyrag-go/ragcore/internal/graph"
	"github.com/anyrag-go/ragcore/internal/ingest"
	"github.com/anyrag-go/ragcore/internal/ingest/coderepo"
	"github.com/anyrag-go/ragcore/internal/ingest/nosql"
	"github.com/anyrag-go/ragcore/internal/ingest/pdf"
	"github.com/anyrag-go/ragcore/internal/ingest/sheet"
	"github.com/anyrag-go/ragcore/internal/ingest/text"
	"github.com/anyrag-go/ragcore/internal/ingest/web"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/promptclient"
	"github.com/anyrag-go/ragcore/internal/rank"
	"github.com/anyrag-go/ragcore/internal/search"
	"github.com/anyrag-go/ragcore/internal/storage"
)

func main() {
	logging.Init()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cfg, err := config.Load("")
	if err != nil {
		logging.Error("ragctl: loading config", err)
		os.Exit(1)
	}

	var exitErr error
	switch cmd {
	case "ingest":
		exitErr = runIngest(cfg, args)
	case "search":
		exitErr = runSearch(cfg, args)
	case "curate":
		exitErr = runCurate(cfg, args)
	case "codestore-ingest":
		exitErr = runCodestoreIngest(cfg, args)
	case "codestore-search":
		exitErr = runCodestoreSearch(cfg, args)
	case "prompt":
		exitErr = runPrompt(cfg, args)
	case "nosql-ingest":
		exitErr = runNosqlIngest(cfg, args)
	default:
		usage()
		os.Exit(1)
	}

	if exitErr != nil {
		logging.Error("ragctl: command failed", exitErr, "command", cmd)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ragctl <command> [flags]

commands:
  ingest             -source web|pdf|sheet|text -url/-text <value>
  search             -q <query> [-llm-rerank]
  curate             -source-url <url>
  codestore-ingest   -repo <url> [-version <spec>]
  codestore-search   -q <query> -repo <name[:version]> [-repo ...]
  prompt             -p <text> [-table <name>] [-instruction <text>]
  nosql-ingest       -collection <name> -table <name>, documents as
                     newline-delimited JSON objects on stdin`)
}

func newProvider(cfg *config.Config) (ai.Provider, error) {
	if cfg.AI.Gemini.APIKey != "" {
		return ai.NewGeminiProvider(context.Background(), cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model, cfg.AI.Gemini.EmbeddingModel, cfg.AI.Gemini.EmbeddingDimensions)
	}
	return ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.BaseURL, cfg.AI.OpenAI.Model)
}

// embeddingModelName returns the embedding model label to record alongside
// stored vectors, matching whichever provider newProvider selected.
func embeddingModelName(cfg *config.Config) string {
	if cfg.AI.Gemini.APIKey != "" {
		return cfg.AI.Gemini.EmbeddingModel
	}
	return "text-embedding-3-small"
}

func runIngest(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	source := fs.String("source", "", "web|pdf|sheet|text")
	url := fs.String("url", "", "source URL (web, pdf, sheet)")
	rawText := fs.String("text", "", "raw text to ingest (text source)")
	strategy := fs.String("strategy", "local", "web strategy: local|readability")
	owner := fs.String("owner", "", "optional owner id to scope the document to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	kg := graph.New()
	opts := ingest.Options{
		Store:          store,
		Gen:            provider,
		Embedder:       provider,
		EmbeddingModel: embeddingModelName(cfg),
		Graph:          kg,
	}
	var ownerPtr *string
	if *owner != "" {
		ownerPtr = owner
	}

	ctx := context.Background()
	var result ingest.Result
	switch *source {
	case "web":
		strat := web.StrategyLocal
		if *strategy == "readability" {
			strat = web.StrategyReadability
		}
		result, err = web.Ingest(ctx, opts, strat, *url, ownerPtr)
	case "pdf":
		result, err = pdf.Ingest(ctx, opts, *url, ownerPtr)
	case "sheet":
		result, err = sheet.Ingest(ctx, opts, *url, ownerPtr)
	case "text":
		result, err = text.Ingest(ctx, opts, *url, *rawText, ownerPtr)
	default:
		return fmt.Errorf("ragctl: unknown -source %q", *source)
	}
	if err != nil {
		return err
	}

	fmt.Printf("ingested %d document(s) from %s\n", result.DocumentsAdded, result.Source)
	return nil
}

func runSearch(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("q", "", "search query")
	limit := fs.Int("limit", cfg.Search.DefaultLimit, "max results")
	owner := fs.String("owner", "", "optional owner id to scope the search to")
	rerank := fs.Bool("llm-rerank", false, "re-order fused results with an LLM pass instead of RRF order")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	var ownerPtr *string
	if *owner != "" {
		ownerPtr = owner
	}

	results := search.HybridSearch(context.Background(), store, provider, provider, search.Options{
		QueryText:        *query,
		Owner:            ownerPtr,
		Limit:            *limit,
		Prompts:          search.DefaultPrompts(),
		UseKeywordSearch: true,
		UseVectorSearch:  true,
		EmbeddingModel:   embeddingModelName(cfg),
		RRFConstant:      cfg.Search.RRFConstant,
		TemporalRankingConfig: &search.TemporalRankingConfig{
			Keywords:     cfg.Search.TemporalKeywords,
			PropertyName: cfg.Search.TemporalPropertyName,
		},
	})

	if *rerank {
		reordered, err := rank.LLMReRank(context.Background(), provider, *query, results)
		if err != nil {
			return err
		}
		results = reordered
	}

	for _, r := range results {
		fmt.Printf("%.4f  %s\n  %s\n\n", r.Score, r.Link, r.Title)
	}
	return nil
}

func runCurate(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("curate", flag.ExitOnError)
	sourceURL := fs.String("source-url", "", "source URL to consolidate")
	owner := fs.String("owner", "", "optional owner id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	var ownerPtr *string
	if *owner != "" {
		ownerPtr = owner
	}

	c := curator.New(store, provider)
	result, err := c.SynthesizeBySource(context.Background(), *sourceURL, ownerPtr)
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Println("fewer than two versions found; nothing to consolidate")
		return nil
	}
	fmt.Printf("consolidated %d versions into %s\n", result.VersionsMerged, result.CanonicalID)
	return nil
}

func runCodestoreIngest(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("codestore-ingest", flag.ExitOnError)
	repoURL := fs.String("repo", "", "git repository URL")
	version := fs.String("version", "", "explicit version/tag (defaults to latest semver tag)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	mgr, err := codestore.NewStorageManager(cfg.Storage.CodeStoreDir)
	if err != nil {
		return err
	}
	defer mgr.Close()

	result, err := coderepo.Ingest(context.Background(), mgr, provider, *repoURL, *version, embeddingModelName(cfg))
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d example(s) (%d embedded) for %s@%s\n", result.ExamplesStored, result.ExamplesEmbedded, result.RepoName, result.Version)
	return nil
}

func runCodestoreSearch(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("codestore-search", flag.ExitOnError)
	query := fs.String("q", "", "search query")
	var repoSpecs stringSlice
	fs.Var(&repoSpecs, "repo", "repo name[:version], repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	mgr, err := codestore.NewStorageManager(cfg.Storage.CodeStoreDir)
	if err != nil {
		return err
	}
	defer mgr.Close()

	results, err := codestore.SearchAcrossRepos(context.Background(), mgr, provider, provider, *query, repoSpecs)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%.4f  %s\n  %s\n\n", r.Score, r.Link, r.Title)
	}
	return nil
}

func runPrompt(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("prompt", flag.ExitOnError)
	prompt := fs.String("p", "", "natural-language prompt")
	table := fs.String("table", "", "table name for schema context")
	instruction := fs.String("instruction", "", "optional natural-language formatting instruction")
	answerKey := fs.String("answer-key", "", "optional result alias")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	client := &promptclient.Client{
		Store:          store,
		Gen:            provider,
		Embedder:       provider,
		EmbeddingModel: embeddingModelName(cfg),
	}
	result, err := client.Execute(context.Background(), promptclient.Options{
		Prompt:      *prompt,
		TableName:   *table,
		Instruction: *instruction,
		AnswerKey:   *answerKey,
	})
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

// runNosqlIngest reads newline-delimited JSON document objects from stdin
// (standing in for an already-authenticated document-store client fetch —
// this module has no such client, see DESIGN.md) and loads them into a
// Postgres project table, funneling a flattened rendering of the batch
// through the shared finisher for hybrid searchability.
func runNosqlIngest(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("nosql-ingest", flag.ExitOnError)
	collection := fs.String("collection", "", "source collection name")
	table := fs.String("table", "", "destination project table name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	project, err := storage.NewPostgresProjectStore(cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer project.Close()

	var documents []map[string]string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var doc map[string]string
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return fmt.Errorf("ragctl: parsing document line: %w", err)
		}
		documents = append(documents, doc)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	result, err := nosql.Ingest(context.Background(), nosql.Options{
		Options: ingest.Options{
			Store:          store,
			Gen:            provider,
			Embedder:       provider,
			EmbeddingModel: embeddingModelName(cfg),
		},
		Project:   project,
		TableName: *table,
	}, *collection, documents)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d document(s) from collection %s into table %s\n", result.DocumentsAdded, *collection, *table)
	return nil
}

// stringSlice implements flag.Value to collect a repeatable -repo flag.
type stringSlice []string

func (s *stringSlice) String() string {
	return fmt.Sprintf("%v", []string(*s))
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}
