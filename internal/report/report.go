// Package report maintains the verified-incident spreadsheet.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/google/renameio/v2"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet created for new reports.
const SheetName = "Verified Fires"

// Columns is the canonical header, in order.
var Columns = []string{
	"title", "content", "published_date", "url", "source",
	"fire_related_score", "verification_result", "verified_at",
}

const (
	columnWidth    = 50
	charsPerLine   = 55
	pointsPerLine  = 15
	maxRowHeight   = 409 // xlsx limit
	hyperlinkKind  = "External"
	linkFontColor  = "0563C1"
	timestampStyle = time.RFC3339
)

// Report appends verified records to an xlsx workbook. Each Append reloads
// the workbook, adds one row aligned to the existing header, reformats, and
// atomically rewrites the file.
type Report struct {
	path string
	mu   sync.Mutex
}

// New returns a report at path. The file is created on first Append.
func New(path string) *Report {
	return &Report{path: path}
}

// Path returns the workbook path.
func (r *Report) Path() string { return r.path }

// Append adds recs as the next rows in one rewrite. An existing file that
// cannot be read is an error and is left untouched.
func (r *Report) Append(recs ...domain.VerifiedRecord) error {
	if len(recs) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, sheet, err := r.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := appendRows(f, sheet, recs); err != nil {
		return err
	}
	return save(f, r.path)
}

// Keys returns the identity of every data row, read from the content,
// published_date and source columns.
func (r *Report) Keys() (map[domain.Key]struct{}, error) {
	rows, err := r.Rows()
	if err != nil {
		return nil, err
	}
	keys := make(map[domain.Key]struct{}, len(rows))
	for _, row := range rows {
		keys[domain.Key{Content: row["content"], Timestamp: row["published_date"], Author: row["source"]}] = struct{}{}
	}
	return keys, nil
}

// Rows returns the data rows keyed by lower-cased header name.
func (r *Report) Rows() ([]map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := excelize.OpenFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", r.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", r.path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				m[headerKey(col)] = row[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Report) open() (*excelize.File, string, error) {
	_, err := os.Stat(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		f, err := newWorkbook()
		return f, SheetName, err
	}
	if err != nil {
		return nil, "", fmt.Errorf("stat report %s: %w", r.path, err)
	}
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, "", fmt.Errorf("open report %s: %w", r.path, err)
	}
	return f, f.GetSheetName(0), nil
}

func newWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("name report sheet: %w", err)
	}
	return f, nil
}

// appendRows merges the canonical columns into the header, writes recs after
// the last row, and reformats the sheet.
func appendRows(f *excelize.File, sheet string, recs []domain.VerifiedRecord) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[headerKey(h)]; !dup {
			index[headerKey(h)] = i
		}
	}
	for _, c := range Columns {
		if _, ok := index[c]; !ok {
			index[c] = len(header)
			header = append(header, c)
		}
	}
	for i, h := range header {
		if err := setCell(f, sheet, i+1, 1, h); err != nil {
			return err
		}
	}

	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	for _, rec := range recs {
		for col, v := range rowValues(rec) {
			if err := setCell(f, sheet, index[col]+1, next, v); err != nil {
				return err
			}
		}
		next++
	}
	return format(f, sheet)
}

// headerKey normalizes a header cell for matching against Columns.
func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func rowValues(rec domain.VerifiedRecord) map[string]any {
	var score any = rec.FireRelatedScore.Raw
	if rec.FireRelatedScore.Valid {
		score = rec.FireRelatedScore.Value
	}
	verifiedAt := ""
	if !rec.VerifiedAt.IsZero() {
		verifiedAt = rec.VerifiedAt.Format(timestampStyle)
	}
	return map[string]any{
		"title":               rec.Title,
		"content":             rec.Content,
		"published_date":      rec.PublishedDate,
		"url":                 rec.URL,
		"source":              rec.Source,
		"fire_related_score":  score,
		"verification_result": string(rec.VerificationResult),
		"verified_at":         verifiedAt,
	}
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}

// format applies column widths, wrapped top-aligned text, content-sized row
// heights, and hyperlinks in url columns. Applying it twice changes nothing.
func format(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil
	}
	ncols := 0
	for _, row := range rows {
		ncols = max(ncols, len(row))
	}
	lastCol, err := excelize.ColumnNumberToName(ncols)
	if err != nil {
		return err
	}

	wrap := &excelize.Alignment{WrapText: true, Vertical: "top"}
	textStyle, err := f.NewStyle(&excelize.Style{Alignment: wrap})
	if err != nil {
		return fmt.Errorf("create text style: %w", err)
	}
	linkStyle, err := f.NewStyle(&excelize.Style{
		Alignment: wrap,
		Font:      &excelize.Font{Color: linkFontColor, Underline: "single"},
	})
	if err != nil {
		return fmt.Errorf("create link style: %w", err)
	}

	if err := f.SetColWidth(sheet, "A", lastCol, columnWidth); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	bottomRight, _ := excelize.CoordinatesToCellName(ncols, len(rows))
	if err := f.SetCellStyle(sheet, "A1", bottomRight, textStyle); err != nil {
		return fmt.Errorf("style cells: %w", err)
	}

	var urlCols []int
	for i, h := range rows[0] {
		if strings.Contains(strings.ToLower(h), "url") {
			urlCols = append(urlCols, i)
		}
	}

	for r, row := range rows {
		if err := f.SetRowHeight(sheet, r+1, rowHeight(row)); err != nil {
			return fmt.Errorf("set row height: %w", err)
		}
		if r == 0 {
			continue
		}
		for _, c := range urlCols {
			if c >= len(row) || !isHTTPURL(row[c]) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			linked, target, err := f.GetCellHyperLink(sheet, cell)
			if err != nil {
				return fmt.Errorf("read link %s: %w", cell, err)
			}
			if !linked || target != row[c] {
				if err := f.SetCellHyperLink(sheet, cell, row[c], hyperlinkKind); err != nil {
					return fmt.Errorf("link %s: %w", cell, err)
				}
			}
			if err := f.SetCellStyle(sheet, cell, cell, linkStyle); err != nil {
				return fmt.Errorf("style %s: %w", cell, err)
			}
		}
	}
	return nil
}

// rowHeight sizes a row for its tallest cell: the larger of its explicit line
// count and its wrapped length at the column width.
func rowHeight(row []string) float64 {
	lines := 1
	for _, v := range row {
		explicit := strings.Count(v, "\n") + 1
		wrapped := int(math.Ceil(float64(utf8.RuneCountInString(v)) / charsPerLine))
		lines = max(lines, explicit, wrapped)
	}
	return math.Min(float64(lines*pointsPerLine), maxRowHeight)
}

func isHTTPURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func save(f *excelize.File, path string) error {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
