// Package web implements the web-page ingestor's Stage 1 (Fetch/Extract):
// fetch HTML and strip boilerplate into Markdown, either via local DOM
// pruning or by delegating to an external readability service. Grounded on
// internal/fetch/fetch.go's goquery-based fetch+extract shape, enriched
// with turtacn-kubestack-ai's html-to-markdown converter for the
// Jina-equivalent strategy's Markdown normalization.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/anyrag-go/ragcore/internal/ingest"
	"github.com/anyrag-go/ragcore/internal/ragerr"
)

// boilerplateSelectors are removed from the document before content
// extraction, mirroring fetch.go's ParseArticleContent cleanup list.
const boilerplateSelectors = "script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner"

// mainContentSelectors are tried in order; the first one matching any node
// wins. Falls back to the whole body.
var mainContentSelectors = []string{
	"article", "main", ".main-content", ".entry-content", ".post-content",
	".post-body", ".article-body", "[role='main']", ".content", "#content",
}

// Strategy is the closed set of Stage 1 extraction approaches for web
// sources, a tagged variant in place of a polymorphic Fetcher hierarchy.
type Strategy int

const (
	// StrategyLocal fetches the page directly and strips boilerplate with
	// goquery + html-to-markdown locally.
	StrategyLocal Strategy = iota
	// StrategyReadability delegates extraction to an external readability
	// service (Jina-equivalent) that already returns cleaned Markdown. The
	// local cleaner runs over the service's output only when that output
	// starts with an HTML tag; any other output is returned unchanged.
	StrategyReadability
)

// ReadabilityEndpoint formats an external readability service URL from a
// target page URL. The default targets the Jina reader proxy convention
// (`https://r.jina.ai/<url>`); callers may override for another provider.
var ReadabilityEndpoint = func(pageURL string) string {
	return "https://r.jina.ai/" + pageURL
}

// Fetch retrieves pageURL and returns Markdown-normalized text, following
// strategy. It never restructures into canonical YAML itself — that is
// Stage 2, handled by ingest.Finish.
func Fetch(ctx context.Context, strategy Strategy, pageURL string) (string, error) {
	switch strategy {
	case StrategyReadability:
		return fetchReadability(ctx, pageURL)
	default:
		return fetchLocal(ctx, pageURL)
	}
}

func fetchLocal(ctx context.Context, pageURL string) (string, error) {
	html, err := getBody(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return extractMarkdown(html)
}

func fetchReadability(ctx context.Context, pageURL string) (string, error) {
	body, err := getBody(ctx, ReadabilityEndpoint(pageURL))
	if err != nil {
		return "", err
	}
	// The readability service already returns cleaned Markdown-ish text,
	// but may still carry HTML fragments (ads, nav) it missed; run it
	// through the same cleaner for consistency.
	if looksLikeHTML(body) {
		return extractMarkdown(body)
	}
	return body, nil
}

func getBody(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request for %s: %v", ragerr.ErrFetch, targetURL, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ragerr.ErrFetch, targetURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d", ragerr.ErrFetch, targetURL, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response from %s: %v", ragerr.ErrFetch, targetURL, err)
	}
	return string(raw), nil
}

func looksLikeHTML(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "<")
}

func extractMarkdown(htmlBody string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("%w: parsing HTML: %v", ragerr.ErrParse, err)
	}
	doc.Find(boilerplateSelectors).Remove()

	var fragment string
	for _, selector := range mainContentSelectors {
		if html, err := doc.Find(selector).First().Html(); err == nil && strings.TrimSpace(html) != "" {
			fragment = html
			break
		}
	}
	if fragment == "" {
		fragment, err = doc.Find("body").Html()
		if err != nil {
			return "", fmt.Errorf("%w: extracting body: %v", ragerr.ErrParse, err)
		}
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("%w: converting to markdown: %v", ragerr.ErrParse, err)
	}
	return strings.TrimSpace(markdown), nil
}

// Ingest runs the full web-page pipeline: fetch+extract (Stage 1) then
// hand the Markdown to the shared finisher (Stages 2-3).
func Ingest(ctx context.Context, opts ingest.Options, strategy Strategy, pageURL string, owner *string) (ingest.Result, error) {
	markdown, err := Fetch(ctx, strategy, pageURL)
	if err != nil {
		return ingest.Result{}, err
	}
	return ingest.Finish(ctx, opts, pageURL, owner, markdown)
}
