// Package ids derives the deterministic identifiers the storage and
// ingestion layers rely on for idempotent re-ingestion.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ForSourceURL returns the UUIDv5 identifier for a document's source URL,
// using the standard URL namespace. This is the cornerstone of idempotent
// re-ingestion: the same source URL always yields the same document ID.
func ForSourceURL(sourceURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL)).String()
}

// ForSection returns the UUIDv5 identifier for the chunk document created
// from section i of a parent document's source URL.
func ForSection(sourceURL string, index int) string {
	return ForSourceURL(fmt.Sprintf("%s#section_%d", sourceURL, index))
}

// SectionLink builds the link used to address a specific section of a
// parent document in search results: "parent_link#Section_Title".
func SectionLink(parentLink, sectionTitle string) string {
	slug := strings.ReplaceAll(sectionTitle, " ", "_")
	return parentLink + "#" + slug
}

// ForUser returns the UUIDv5 identifier for an external user identifier.
func ForUser(externalIdentifier string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("user:"+externalIdentifier)).String()
}

// RepoSlug derives a repository slug from a URL per the rule: take the
// last two path segments, join with '-', strip characters outside
// [A-Za-z0-9_-].
func RepoSlug(repoURL string) string {
	trimmed := strings.TrimSuffix(repoURL, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")
	parts := strings.Split(trimmed, "/")
	var segs []string
	if len(parts) >= 2 {
		segs = parts[len(parts)-2:]
	} else {
		segs = parts
	}
	joined := strings.Join(segs, "-")

	var b strings.Builder
	for _, r := range joined {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
