// Package excel reads region × time matrices from CSV and XLSX files and
// writes matrices back to CSV.
package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"triadbalance/internal"
	"triadbalance/internal/connectivity"
	"triadbalance/internal/errors"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// TimeSeries is a parsed region × time matrix with optional region labels
type TimeSeries struct {
	Data   *mat.Dense
	Labels []string
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"

	// Sheet is the XLSX sheet to read; empty means the first sheet
	Sheet string
	// Transposed marks files stored as time × region
	Transposed bool

	logger *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" || ext == ".txt" {
		fileType = "csv"
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		logger:   internal.DefaultLogger.WithComponent("DataReader"),
	}
}

// ReadMatrix reads the file into a region × time matrix. An optional header
// row and an optional leading label column are detected and skipped. Empty
// cells and NaN/NA/null read as NaN.
func (r *DataReader) ReadMatrix() (*TimeSeries, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, errors.InvalidInput("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	ts, err := parseRows(rows, r.Transposed)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", r.filePath)
	}
	nROI, nTime := ts.Data.Dims()
	r.logger.Info("%s: %d regions x %d timepoints", filepath.Base(r.filePath), nROI, nTime)
	return ts, nil
}

// readExcelRows reads every row of the configured sheet
func (r *DataReader) readExcelRows() ([][]string, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	sheet := r.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %s", sheet)
	}
	r.logger.Debug("sheet %s read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	// GetRows drops trailing empty cells; pad them back as missing samples
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i, row := range rows {
		for len(row) > 0 && len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	return rows, nil
}

// readCSVRows reads CSV data; field counts are checked by parseRows
func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "failed to read CSV file"))
	}
	return rows, nil
}

func parseRows(rows [][]string, transposed bool) (*TimeSeries, error) {
	rows = dropEmptyRows(rows)
	if len(rows) == 0 {
		return nil, errors.InvalidShape("file has no data rows")
	}

	if isHeader(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, errors.InvalidShape("file has a header but no data rows")
	}

	labelled := !transposed && !isNumericCell(rows[0][0])
	var labels []string
	values := make([][]float64, len(rows))
	for i, row := range rows {
		cells := row
		if labelled {
			labels = append(labels, strings.TrimSpace(row[0]))
			cells = row[1:]
		}
		values[i] = make([]float64, len(cells))
		for j, cell := range cells {
			v, ok := parseCell(cell)
			if !ok {
				return nil, errors.InvalidInput("row %d column %d: %q is not a number", i+1, j+1, cell)
			}
			values[i][j] = v
		}
	}

	if transposed {
		for i, row := range values {
			if len(row) != len(values[0]) {
				return nil, errors.InvalidShape("timepoint row %d has %d values, want %d", i+1, len(row), len(values[0]))
			}
		}
		values = transpose(values)
	}
	data, err := connectivity.FromRows(values)
	if err != nil {
		return nil, err
	}
	return &TimeSeries{Data: data, Labels: labels}, nil
}

// transpose expects rows of equal width
func transpose(values [][]float64) [][]float64 {
	if len(values) == 0 {
		return values
	}
	out := make([][]float64, len(values[0]))
	for j := range out {
		out[j] = make([]float64, len(values))
		for i, row := range values {
			out[j][i] = row[j]
		}
	}
	return out
}

func dropEmptyRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// isHeader reports whether every non-label cell is text
func isHeader(row []string) bool {
	if len(row) < 2 {
		return false
	}
	for _, cell := range row[1:] {
		if _, ok := parseCell(cell); ok {
			return false
		}
	}
	return true
}

func isNumericCell(cell string) bool {
	_, ok := parseCell(cell)
	return ok
}

func parseCell(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a", "null":
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// WriteCSV writes a matrix as CSV, one row per region. Labels, when given,
// fill a leading column. NaN is written as "NaN".
func WriteCSV(w io.Writer, m mat.Matrix, labels []string) error {
	rows, cols := m.Dims()
	if labels != nil && len(labels) != rows {
		return errors.InvalidShape("%d labels for %d rows", len(labels), rows)
	}

	cw := csv.NewWriter(w)
	for i := 0; i < rows; i++ {
		record := make([]string, 0, cols+1)
		if labels != nil {
			record = append(record, labels[i])
		}
		for j := 0; j < cols; j++ {
			record = append(record, strconv.FormatFloat(m.At(i, j), 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
