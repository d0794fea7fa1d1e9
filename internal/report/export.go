package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/google/renameio/v2"
)

// VerifiedLister lists every verified record.
type VerifiedLister interface {
	All(ctx context.Context) ([]domain.VerifiedRecord, error)
}

// ExportRecent writes the verified records whose published date is fresh
// relative to now into a standalone JSON array and workbook. Both files are
// replaced. It returns the number of records exported.
func ExportRecent(ctx context.Context, src VerifiedLister, fresh domain.Freshness, now time.Time, jsonPath, xlsxPath string) (int, error) {
	all, err := src.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load verified records: %w", err)
	}

	recent := make([]domain.VerifiedRecord, 0, len(all))
	for _, rec := range all {
		if fresh.Fresh(rec.PublishedDate, now) {
			recent = append(recent, rec)
		}
	}

	data, err := json.MarshalIndent(recent, "", "    ")
	if err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(jsonPath), 0o755); err != nil {
		return 0, fmt.Errorf("create dir for %s: %w", jsonPath, err)
	}
	if err := renameio.WriteFile(jsonPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", jsonPath, err)
	}

	f, err := newWorkbook()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := appendRows(f, SheetName, recent); err != nil {
		return 0, err
	}
	if err := save(f, xlsxPath); err != nil {
		return 0, err
	}
	return len(recent), nil
}
