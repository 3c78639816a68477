package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gosuperior/domain/trial"
	"gosuperior/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading raw trial tables from Excel and CSV files
type DataReader struct {
	filePath  string
	fileType  string // "xlsx" or "csv"
	sheetName string // xlsx only; empty means the first sheet
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// WithSheet selects the worksheet to read from an xlsx workbook
func (r *DataReader) WithSheet(name string) *DataReader {
	r.sheetName = name
	return r
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath))
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads the selected sheet into structured format
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	log.Printf("[DataReader] Sheet %q read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, errors.InvalidInput("Excel file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, errors.InvalidInput("CSV file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		rowData := make(RawRowData, len(headers))
		for j, cell := range rows[i] {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	log.Printf("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &ExcelData{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

// ReadObservations reads the trial table and maps the named columns into
// observations. Rows with a missing or non-numeric trait value are dropped.
func (r *DataReader) ReadObservations(ctx context.Context, columns trial.Columns) ([]trial.Observation, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ToObservations(data, columns)
}

// ToObservations maps raw rows into observations.
func ToObservations(data *ExcelData, columns trial.Columns) ([]trial.Observation, error) {
	required := []string{columns.Genotype, columns.Environment, columns.Trait}
	if columns.UsesRegion() {
		required = append(required, columns.Region)
	}
	for _, name := range required {
		if !data.HasColumn(name) {
			return nil, errors.InvalidInput(fmt.Sprintf("column %q not found (have %v)", name, data.Headers))
		}
	}

	observations := make([]trial.Observation, 0, len(data.Rows))
	dropped := 0
	for _, row := range data.Rows {
		value, ok := parseTrait(row[columns.Trait])
		if !ok || row[columns.Genotype] == "" || row[columns.Environment] == "" {
			dropped++
			continue
		}
		obs := trial.Observation{
			Genotype:    trial.GenotypeID(row[columns.Genotype]),
			Environment: trial.EnvironmentID(row[columns.Environment]),
			Value:       value,
		}
		if columns.UsesRegion() {
			obs.Region = trial.RegionID(row[columns.Region])
		}
		observations = append(observations, obs)
	}

	if dropped > 0 {
		log.Printf("[DataReader] Dropped %d rows with missing trait or identity values", dropped)
	}
	return observations, nil
}

// parseTrait accepts a decimal value; empty cells and the usual missing
// markers are treated as missing.
func parseTrait(cell string) (float64, bool) {
	switch strings.ToUpper(cell) {
	case "", "NA", "N/A", "NAN", ".", "NULL":
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// WriteObservationsCSV writes observations as a trial table using the given
// column names. The region column is written only when named.
func WriteObservationsCSV(w io.Writer, observations []trial.Observation, columns trial.Columns) error {
	cw := csv.NewWriter(w)
	header := []string{columns.Genotype, columns.Environment}
	if columns.UsesRegion() {
		header = append(header, columns.Region)
	}
	header = append(header, columns.Trait)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, obs := range observations {
		rec := []string{string(obs.Genotype), string(obs.Environment)}
		if columns.UsesRegion() {
			rec = append(rec, string(obs.Region))
		}
		rec = append(rec, strconv.FormatFloat(obs.Value, 'f', -1, 64))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
