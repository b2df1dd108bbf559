package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/queue-api/internal/importer"
	"github.com/jwalitptl/queue-api/internal/model"
)

const SheetName = "Patients"

// Columns is the fixed export column order. The names are the canonical import
// headers so an exported file re-imports unchanged.
var Columns = []string{
	importer.FieldFullName,
	importer.FieldPhone,
	importer.FieldScheduledTime,
	importer.FieldEstimatedTime,
	importer.FieldStatus,
	importer.FieldNotes,
}

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func record(p *model.Patient) []string {
	return []string{
		p.FullName,
		p.Phone,
		p.ScheduledTime,
		p.EstimatedTime,
		string(p.Status),
		p.NotesOrEmpty(),
	}
}

// WriteCSV writes a header line and one line per patient.
func WriteCSV(w io.Writer, patients []*model.Patient) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range patients {
		if err := cw.Write(record(p)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with a single "Patients" sheet.
func WriteXLSX(w io.Writer, patients []*model.Patient) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}
	if err := sw.SetRow("A1", cells(Columns)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, p := range patients {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells(record(p))); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
