package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// TitleLength is the number of characters of content kept as a verified record's title.
const TitleLength = 100

// Key is the identity of a post: (content, timestamp, author).
type Key struct {
	Content   string
	Timestamp string
	Author    string
}

// String renders the key for logs, truncating long content.
func (k Key) String() string {
	return fmt.Sprintf("%s@%s:%q", k.Author, k.Timestamp, Truncate(k.Content, 40))
}

// ID is a short deterministic hash of the key, used as a message key downstream
// so that replays deduplicate without coordination.
func (k Key) ID() string {
	hash := sha256.Sum256([]byte(k.Content + "|" + k.Timestamp + "|" + k.Author))
	return hex.EncodeToString(hash[:8])
}

// Keyed is implemented by every record a store can hold.
type Keyed interface {
	Key() Key
}

// Engagement holds the interaction counters reported by the harvester.
type Engagement struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
}

// RawRecord is one harvested post. It is immutable once stored and is never
// deleted; the raw store doubles as an audit trail.
type RawRecord struct {
	Author      string     `json:"author"`
	Content     string     `json:"content"`
	Timestamp   string     `json:"timestamp"` // as harvested; may be unparseable
	SourceURL   string     `json:"source_url"`
	Engagement  Engagement `json:"engagement_counts"`
	MediaURLs   []string   `json:"media_urls,omitempty"`
	OriginQuery string     `json:"origin_query,omitempty"`
}

// Key returns the record identity.
func (r RawRecord) Key() Key {
	return Key{Content: r.Content, Timestamp: r.Timestamp, Author: r.Author}
}

// Verdict is the binary classification result.
type Verdict string

const (
	VerdictYes Verdict = "yes"
	VerdictNo  Verdict = "no"
)

// ParseVerdict reads a classifier answer. Only answers beginning with "yes"
// (case-insensitive, after trimming) are positive.
func ParseVerdict(answer string) Verdict {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "yes") {
		return VerdictYes
	}
	return VerdictNo
}

// Score is the 0-10 relevance score, or the raw classifier answer when no
// in-range integer could be read from it. The zero value is an empty raw score,
// which is what a failed scoring call produces.
type Score struct {
	Value int
	Raw   string
	Valid bool
}

// IntScore builds a valid numeric score.
func IntScore(v int) Score {
	return Score{Value: v, Raw: strconv.Itoa(v), Valid: true}
}

// RawScore builds a score that only carries the classifier's raw answer.
func RawScore(raw string) Score {
	return Score{Raw: raw}
}

// String renders the score as it appears in the report.
func (s Score) String() string {
	if s.Valid {
		return strconv.Itoa(s.Value)
	}
	return s.Raw
}

// MarshalJSON writes a number for valid scores and a string otherwise.
func (s Score) MarshalJSON() ([]byte, error) {
	if s.Valid {
		return []byte(strconv.Itoa(s.Value)), nil
	}
	return json.Marshal(s.Raw)
}

// UnmarshalJSON accepts a number, a string, or null. A number that is not an
// integer in 0-10 is kept as a raw score.
func (s *Score) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = Score{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode score: %w", err)
		}
		*s = RawScore(raw)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode score: %w", err)
	}
	if n != math.Trunc(n) || n < 0 || n > 10 {
		*s = RawScore(trimmed)
		return nil
	}
	*s = IntScore(int(n))
	return nil
}

// VerifiedRecord is a post that passed both filters and received a positive
// verdict. Field names match the report columns.
type VerifiedRecord struct {
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	PublishedDate      string    `json:"published_date"`
	URL                string    `json:"url"`
	Source             string    `json:"source"`
	FireRelatedScore   Score     `json:"fire_related_score"`
	VerificationResult Verdict   `json:"verification_result"`
	VerifiedAt         time.Time `json:"verified_at"`
}

// Key returns the identity shared with the originating raw record.
func (v VerifiedRecord) Key() Key {
	return Key{Content: v.Content, Timestamp: v.PublishedDate, Author: v.Source}
}

// NewVerifiedRecord derives a verified record from a raw post, stamped with the
// package clock.
func NewVerifiedRecord(raw RawRecord, verdict Verdict, score Score) VerifiedRecord {
	return VerifiedRecord{
		Title:              Truncate(raw.Content, TitleLength),
		Content:            raw.Content,
		PublishedDate:      raw.Timestamp,
		URL:                raw.SourceURL,
		Source:             raw.Author,
		FireRelatedScore:   score,
		VerificationResult: verdict,
		VerifiedAt:         clock.Now().UTC(),
	}
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
