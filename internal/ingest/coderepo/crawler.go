package coderepo

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/anyrag-go/ragcore/internal/logging"
)

// CrawlResult is a cloned repository pinned to a resolved version, with a
// Close method to remove its temporary checkout.
type CrawlResult struct {
	Path    string
	Version string
	cleanup func()
}

// Close removes the temporary clone directory. Safe to call multiple times.
func (c *CrawlResult) Close() {
	if c.cleanup != nil {
		c.cleanup()
		c.cleanup = nil
	}
}

// Crawl shallow-clones repoURL into a temporary directory and pins it to
// versionSpec, or — if versionSpec is empty — to the highest semver tag
// found in the repository, falling back to the default branch's HEAD
// commit. Reimplements
// original_source/crates/lib/src/github_ingest/crawler.rs's clone/
// fetch-tags/checkout sequence using go-git instead of shelling out to the
// git binary.
func Crawl(ctx context.Context, repoURL, versionSpec string) (*CrawlResult, error) {
	dir, err := os.MkdirTemp("", "coderepo-clone-*")
	if err != nil {
		return nil, fmt.Errorf("coderepo: creating clone directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("coderepo: cloning %s: %w", repoURL, err)
	}

	if err := fetchTagsAndHistory(ctx, repo); err != nil {
		logging.Warn("coderepo: could not fetch full history/tags, proceeding with shallow clone", "repo", repoURL, "error", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("coderepo: opening worktree: %w", err)
	}

	version := versionSpec
	if version == "" {
		if tag, err := latestSemverTag(repo); err == nil {
			version = tag
		} else {
			logging.Info("coderepo: no semver tags found, using default branch", "repo", repoURL)
		}
	}

	if version != "" {
		if err := checkoutRef(worktree, version); err != nil {
			logging.Warn("coderepo: checkout failed, staying on default branch", "repo", repoURL, "ref", version, "error", err)
			version = ""
		}
	}

	if version == "" {
		head, err := repo.Head()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("coderepo: resolving HEAD: %w", err)
		}
		version = head.Hash().String()
	}

	return &CrawlResult{Path: dir, Version: version, cleanup: cleanup}, nil
}

func fetchTagsAndHistory(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RefSpecs: []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Tags:     git.AllTags,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return err
	}
	return nil
}

// latestSemverTag returns the tag name whose trimmed-of-leading-"v" form
// parses as the highest semantic version in the repository.
func latestSemverTag(repo *git.Repository) (string, error) {
	tagsIter, err := repo.Tags()
	if err != nil {
		return "", err
	}
	defer tagsIter.Close()

	var versions []*semver.Version
	byVersion := make(map[string]string)

	_ = tagsIter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		v, err := semver.NewVersion(strings.TrimPrefix(name, "v"))
		if err != nil {
			return nil
		}
		versions = append(versions, v)
		byVersion[v.String()] = name
		return nil
	})
	if len(versions) == 0 {
		return "", fmt.Errorf("coderepo: no semver tags found")
	}

	sort.Sort(sort.Reverse(semver.Collection(versions)))
	return byVersion[versions[0].String()], nil
}

func checkoutRef(wt *git.Worktree, ref string) error {
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewTagReferenceName(ref)}); err == nil {
		return nil
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(ref)})
}
