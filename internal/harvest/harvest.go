// Package harvest decodes the harvester's JSON output into raw records.
//
// Two layouts are accepted per object. The canonical layout mirrors
// domain.RawRecord. The legacy layout is what the browser harvester writes:
//
//	{"username", "content", "timestamp", "tweet_url", "retweets", "likes",
//	 "media", "search_query", "source_account"}
//
// with counters as display strings such as "1.2K". A tweet_url of
// "URL Not Found" is stored as an empty URL.
package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
)

// urlNotFound is the harvester's placeholder for a post without a permalink.
const urlNotFound = "URL Not Found"

// Metric is an engagement counter that decodes from a number or a display
// string ("423", "1,234", "1.2K", "5.7M"). Unreadable values decode as zero.
type Metric int

func (m *Metric) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*m = 0
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*m = Metric(ParseMetric(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		*m = 0
		return nil
	}
	*m = Metric(int(f))
	return nil
}

// ParseMetric converts abbreviated metric strings like "1.2K", "5.7M", or "423" to integers.
func ParseMetric(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1_000
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1_000_000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}

type wireEngagement struct {
	Likes    Metric `json:"likes"`
	Retweets Metric `json:"retweets"`
	Replies  Metric `json:"replies"`
}

type wireRecord struct {
	// canonical
	Author      string          `json:"author"`
	Content     string          `json:"content"`
	Timestamp   string          `json:"timestamp"`
	SourceURL   string          `json:"source_url"`
	Engagement  *wireEngagement `json:"engagement_counts"`
	MediaURLs   []string        `json:"media_urls"`
	OriginQuery string          `json:"origin_query"`

	// legacy
	Username      string   `json:"username"`
	SourceAccount string   `json:"source_account"`
	TweetURL      string   `json:"tweet_url"`
	Likes         Metric   `json:"likes"`
	Retweets      Metric   `json:"retweets"`
	Replies       Metric   `json:"replies"`
	Media         []string `json:"media"`
	SearchQuery   string   `json:"search_query"`
}

func (w wireRecord) record() domain.RawRecord {
	r := domain.RawRecord{
		Author:      firstNonEmpty(w.Author, w.Username, w.SourceAccount),
		Content:     w.Content,
		Timestamp:   w.Timestamp,
		SourceURL:   firstNonEmpty(w.SourceURL, w.TweetURL),
		MediaURLs:   w.MediaURLs,
		OriginQuery: firstNonEmpty(w.OriginQuery, w.SearchQuery),
	}
	if r.SourceURL == urlNotFound {
		r.SourceURL = ""
	}
	if len(r.MediaURLs) == 0 {
		r.MediaURLs = w.Media
	}
	if w.Engagement != nil {
		r.Engagement = domain.Engagement{
			Likes:    int(w.Engagement.Likes),
			Retweets: int(w.Engagement.Retweets),
			Replies:  int(w.Engagement.Replies),
		}
	} else {
		r.Engagement = domain.Engagement{Likes: int(w.Likes), Retweets: int(w.Retweets), Replies: int(w.Replies)}
	}
	return r
}

// ErrMissingContent is returned for objects that carry no post content.
var ErrMissingContent = errors.New("record has no content")

// DecodeRecord decodes one JSON object.
func DecodeRecord(data []byte) (domain.RawRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.RawRecord{}, fmt.Errorf("decode harvested record: %w", err)
	}
	r := w.record()
	if strings.TrimSpace(r.Content) == "" {
		return domain.RawRecord{}, ErrMissingContent
	}
	return r, nil
}

// DecodeRecords decodes a JSON array. Elements that fail to decode are logged
// and skipped.
func DecodeRecords(data []byte, logger *slog.Logger) ([]domain.RawRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("decode harvested batch: %w", err)
	}
	out := make([]domain.RawRecord, 0, len(elems))
	for i, e := range elems {
		r, err := DecodeRecord(e)
		if err != nil {
			logger.Warn("skipping harvested record", "index", i, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FileSource reads one batch from a harvester output file. A missing file is
// an empty batch.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource returns a source reading path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// ReadBatch returns every decodable record in the file.
func (s *FileSource) ReadBatch(_ context.Context) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("harvest file not found, nothing to ingest", "path", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read harvest file %s: %w", s.path, err)
	}
	return DecodeRecords(data, s.logger)
}

// Commit is a no-op; the harvest file is never modified.
func (s *FileSource) Commit(_ context.Context) error { return nil }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
