// Package export turns the batch's combined output into downloadable
// artifacts: raw structured markup, CSV, or an XLSX workbook.
package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/marcus-hale/chartscan/internal/common"
	"github.com/marcus-hale/chartscan/internal/table"
)

// Content types for the export artifacts.
const (
	ContentTypeMarkup = "application/xml"
	ContentTypeCSV    = "text/csv"
	ContentTypeXLSX   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Service produces export artifacts from combined structured output.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RawMarkup returns the combined output as-is, suitable for a .xml download
// or a clipboard copy.
func (s *Service) RawMarkup(combined string) []byte {
	return []byte(combined)
}

// CSV converts the combined output to tabular text. The transformer signals
// parse failure by returning an empty table; for non-empty input that is a
// conversion failure the caller must surface to the user.
func (s *Service) CSV(combined string) ([]byte, error) {
	out := table.ToTable(combined)
	if out == "" && strings.TrimSpace(combined) != "" {
		s.logger.Error("export.csv.failed", "markup_len", len(combined))
		return nil, common.NewAppError("EXPORT_CSV", "markup could not be converted", common.ErrConversion)
	}
	return []byte(out), nil
}

// XLSX returns an XLSX workbook (as bytes) with one row per extracted
// document.
func (s *Service) XLSX(combined string) ([]byte, error) {
	start := time.Now()

	rows, ok := table.Rows(combined)
	if !ok && strings.TrimSpace(combined) != "" {
		s.logger.Error("export.xlsx.failed", "markup_len", len(combined))
		return nil, common.NewAppError("EXPORT_XLSX", "markup could not be converted", common.ErrConversion)
	}

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range table.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 14) // order id
	_ = f.SetColWidth(sheet, "B", "B", 24) // patient
	_ = f.SetColWidth(sheet, "E", "G", 24) // doctor, license, clinic
	_ = f.SetColWidth(sheet, "H", "K", 16) // medicine block

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
