package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gosuperior/domain/core"
	"gosuperior/domain/superior"

	"github.com/xuri/excelize/v2"
)

// Table selects which matrix of a result an exporter writes.
type Table string

const (
	TableGxE      Table = "gxe"
	TableGxR      Table = "gxr"
	TableStdErr   Table = "gxe_std_err"
	TableMarginal Table = "marginal"
)

// Tables returns the tables a result can provide, in export order.
func Tables(result *superior.Result) []Table {
	tables := []Table{TableGxE, TableStdErr}
	if result.HasRegions() {
		tables = append(tables, TableGxR)
	}
	return append(tables, TableMarginal)
}

// tableRows lays out one table as string rows: a header row, then one row per
// genotype with decimal fractions or MissingMarker.
func tableRows(result *superior.Result, table Table) ([][]string, error) {
	var m *superior.Matrix
	switch table {
	case TableGxE:
		m = result.GxE
	case TableStdErr:
		m = result.GxEStdErr
	case TableGxR:
		m = result.GxR
	case TableMarginal:
		m = superior.NewMatrix(result.Genotypes, []string{"marginal"})
		for j, c := range result.Marginal {
			m.Cells[j][0] = c
		}
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
	if m == nil {
		return nil, core.NewNotFoundError("table", string(table))
	}

	rows := make([][]string, 0, len(m.Rows)+1)
	rows = append(rows, append([]string{"genotype"}, m.Columns...))
	for i, label := range m.Rows {
		row := make([]string, 0, len(m.Columns)+1)
		row = append(row, label)
		for _, c := range m.Cells[i] {
			row = append(row, formatCell(c))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatCell(c superior.Cell) string {
	if !c.Valid {
		return MissingMarker
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// CSVExporter writes a single table as CSV.
type CSVExporter struct {
	table Table
}

// NewCSVExporter creates an exporter for one table.
func NewCSVExporter(table Table) *CSVExporter {
	return &CSVExporter{table: table}
}

// Extension returns the file extension of the export.
func (e *CSVExporter) Extension() string { return ".csv" }

// Export writes the table to w.
func (e *CSVExporter) Export(ctx context.Context, result *superior.Result, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := tableRows(result, e.table)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV export: %w", err)
	}
	return nil
}

// XLSXExporter writes every table of a result as its own worksheet.
type XLSXExporter struct{}

// NewXLSXExporter creates a workbook exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Extension returns the file extension of the export.
func (e *XLSXExporter) Extension() string { return ".xlsx" }

// Export writes a workbook with one sheet per table.
func (e *XLSXExporter) Export(ctx context.Context, result *superior.Result, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, table := range Tables(result) {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := tableRows(result, table)
		if err != nil {
			return err
		}

		sheet := string(table)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		for r, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
				// Numbers are written as numbers so spreadsheets can format them.
				if r > 0 && c > 0 && v != MissingMarker {
					if num, err := strconv.ParseFloat(v, 64); err == nil {
						values[c] = num
					}
				}
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("failed to write sheet %s: %w", sheet, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
