package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/couchcryptid/fire-incident-pipeline/internal/harvest"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRecord(t *testing.T) {
	msg := kafkago.Message{
		Value:     []byte(`{"username":"DFWscanner","content":"Warehouse fire in Dallas","timestamp":"2025-01-10T10:00:00Z","likes":"1.2K"}`),
		Topic:     "raw-fire-posts",
		Partition: 2,
		Offset:    42,
	}

	rec, err := mapMessageToRecord(msg)
	require.NoError(t, err)

	assert.Equal(t, "DFWscanner", rec.Author)
	assert.Equal(t, "2025-01-10T10:00:00Z", rec.Timestamp)
	assert.Equal(t, 1200, rec.Engagement.Likes)
}

func TestMapMessageToRecord_FallsBackToMessageTime(t *testing.T) {
	now := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	rec, err := mapMessageToRecord(kafkago.Message{
		Value: []byte(`{"username":"a","content":"c"}`),
		Time:  now,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10T10:00:00Z", rec.Timestamp)
}

func TestMapMessageToRecord_Malformed(t *testing.T) {
	_, err := mapMessageToRecord(kafkago.Message{Value: []byte("not-json{{{")})
	require.Error(t, err)

	_, err = mapMessageToRecord(kafkago.Message{Value: []byte(`{"username":"a"}`)})
	require.ErrorIs(t, err, harvest.ErrMissingContent)
}

func TestSerializeToMessage(t *testing.T) {
	verifiedAt := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	rec := domain.VerifiedRecord{
		Title:              "House fire",
		Content:            "House fire in Austin",
		PublishedDate:      "2025-01-10T10:00:00Z",
		Source:             "AustinFireInfo",
		FireRelatedScore:   domain.IntScore(8),
		VerificationResult: domain.VerdictYes,
		VerifiedAt:         verifiedAt,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte(rec.Key().ID()), msg.Key)
	assert.Len(t, msg.Key, 16)
	var decoded domain.VerifiedRecord
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, domain.IntScore(8), decoded.FireRelatedScore)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "verification_result", msg.Headers[0].Key)
	assert.Equal(t, []byte("yes"), msg.Headers[0].Value)
	assert.Equal(t, "verified_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(verifiedAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

// fakeFetcher serves queued messages, then blocks until the fetch deadline.
type fakeFetcher struct {
	queue     []kafkago.Message
	committed []kafkago.Message
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(f.queue) == 0 {
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) push(values ...string) {
	for _, v := range values {
		f.queue = append(f.queue, kafkago.Message{Value: []byte(v), Offset: int64(len(f.queue) + len(f.committed))})
	}
}

func post(author string) string {
	return fmt.Sprintf(`{"username":%q,"content":"House fire in Austin","timestamp":"2025-01-10T10:00:00Z"}`, author)
}

func authors(recs []domain.RawRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Author
	}
	return out
}

func TestReader_UncommittedRecordsReturnedAgain(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{}
	r := newReader(f, 10, 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.push(post("a"), "not-json{{{", post("b"))
	batch, err := r.ReadBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, authors(batch))

	// No commit: the next read still carries a and b alongside new messages.
	f.push(post("c"))
	batch, err = r.ReadBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, authors(batch))
	assert.Empty(t, f.committed)

	require.NoError(t, r.Commit(ctx))
	assert.Len(t, f.committed, 4, "malformed message is committed with its batch")

	batch, err = r.ReadBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch)
	require.NoError(t, r.Commit(ctx))
	assert.Len(t, f.committed, 4)
}

func TestReader_FullPendingBatchStillReturned(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{}
	r := newReader(f, 2, 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.push(post("a"), post("b"), post("c"))
	batch, err := r.ReadBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, authors(batch))

	batch, err = r.ReadBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, authors(batch), "nothing new is fetched until the batch is committed")

	require.NoError(t, r.Commit(ctx))
	batch, err = r.ReadBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, authors(batch))
}
