package model

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// RawArticle is an immutable ingested news article. URL and ContentHash are
// each unique across the article store.
type RawArticle struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	BodyText    string    `json:"body_text"`
	ContentHash string    `json:"content_hash"`
	Processed   bool      `json:"processed"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// HashContent returns the sha256 hex digest of the body text after
// lowercasing and collapsing whitespace, so trivial reformatting of the
// same article hashes identically.
func HashContent(body string) string {
	normalized := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(body)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NewRawArticle builds an article with a fresh ID and computed content hash.
func NewRawArticle(sourceID, url, title, body string, publishedAt time.Time) RawArticle {
	return RawArticle{
		ID:          NewID(),
		SourceID:    sourceID,
		URL:         url,
		Title:       title,
		PublishedAt: publishedAt.UTC(),
		BodyText:    body,
		ContentHash: HashContent(body),
	}
}

// Text returns title and body joined for keyword and pattern scans.
func (a RawArticle) Text() string {
	return a.Title + "\n" + a.BodyText
}
