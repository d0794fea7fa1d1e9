package smtp

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/couchcryptid/fire-incident-pipeline/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMailer() *Mailer {
	return NewMailer(Config{
		Host: "smtp.example.com",
		Port: 587,
		From: "firewatch@example.com",
		To:   []string{"ops@example.com", "analyst@example.com"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMessage_HeadersBodyAndAttachments(t *testing.T) {
	dir := t.TempDir()
	xlsx := filepath.Join(dir, "verified_fires.xlsx")
	js := filepath.Join(dir, "live_verified_fires.json")
	require.NoError(t, os.WriteFile(xlsx, []byte("xlsx-bytes"), 0o600))
	require.NoError(t, os.WriteFile(js, []byte("[]"), 0o600))

	n := notify.New([]domain.VerifiedRecord{{
		Title:            "House fire in Austin",
		Source:           "AustinFireInfo",
		URL:              "https://x.com/AustinFireInfo/status/1",
		FireRelatedScore: domain.IntScore(8),
	}}, xlsx, js)

	msg, err := testMailer().message(n)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "Subject: Verified Fire Incidents - Latest Batch")
	assert.Contains(t, out, "ops@example.com")
	assert.Contains(t, out, "analyst@example.com")
	assert.Contains(t, out, "Please find attached the latest verified fire incidents")
	assert.Contains(t, out, "House fire in Austin (AustinFireInfo, score 8)")
	assert.Contains(t, out, `filename="verified_fires.xlsx"`)
	assert.Contains(t, out, `filename="live_verified_fires.json"`)
}

func TestMessage_MissingAttachment(t *testing.T) {
	_, err := testMailer().message(notify.New(nil, filepath.Join(t.TempDir(), "missing.xlsx")))
	require.Error(t, err)
}

func TestMessage_InvalidAddress(t *testing.T) {
	m := testMailer()
	m.cfg.From = "not an address"
	_, err := m.message(notify.New(nil))
	require.Error(t, err)
}
