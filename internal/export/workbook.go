// Package export writes collected records to a spreadsheet.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/ibeckermayer/xharvest/internal/types"
)

const SheetName = "Links"

var header = []any{"Date", "Link", "Username"}

// Workbook is the spreadsheet sink
type Workbook struct{}

func NewWorkbook() *Workbook {
	return &Workbook{}
}

// Write renders records into a one-sheet workbook with a blank spacer row after each record.
// With a path the file is replaced atomically and no buffer is returned.
// Empty input returns (0, nil, nil, nil).
func (w *Workbook) Write(records []types.Record, path string) (int, []types.Record, []byte, error) {
	kept := filter(records)
	if len(kept) == 0 {
		logrus.Info("No posts found in the specified range")
		return 0, nil, nil, nil
	}

	f, err := build(kept)
	if err != nil {
		return 0, nil, nil, &types.ExportError{Path: path, Err: err}
	}
	defer f.Close()

	if path != "" {
		if err := saveAtomic(f, path); err != nil {
			return 0, nil, nil, &types.ExportError{Path: path, Err: err}
		}
		logrus.Infof("Saved %d posts to %s", len(kept), path)
		return len(kept), kept, nil, nil
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return 0, nil, nil, &types.ExportError{Err: err}
	}
	logrus.Infof("Generated workbook in memory (%d posts)", len(kept))
	return len(kept), kept, buf.Bytes(), nil
}

func filter(records []types.Record) []types.Record {
	var out []types.Record
	for _, r := range records {
		if r.Link != "" {
			out = append(out, r)
		}
	}
	return out
}

func build(records []types.Record) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	row := 2
	for _, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := []any{wallClock(r.Timestamp), r.Link, r.Username}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			f.Close()
			return nil, err
		}
		// the next row stays empty as a spacer
		row += 2
	}

	if err := f.SetColWidth(SheetName, "A", "A", 20); err != nil {
		logrus.Debugf("Failed to set column width: %v", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 60); err != nil {
		logrus.Debugf("Failed to set column width: %v", err)
	}
	return f, nil
}

// wallClock drops the zone so the sheet shows the normalized local time
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// saveAtomic writes next to path and renames, so a failed write never leaves a partial file
func saveAtomic(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".links-*.xlsx")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
