package ingest

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"automl/domain/core"
	"automl/domain/dataset"
	"automl/internal"
	"automl/ports"
)

// DataReader handles reading Excel and CSV files into a Frame
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	mapping  map[string]string
	logger   *internal.Logger
}

var _ ports.DataReader = (*DataReader)(nil)

// NewDataReader picks the format from the file extension. A nil mapping
// uses DefaultColumnMapping.
func NewDataReader(filePath string, mapping map[string]string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "csv"
	if ext == ".xlsx" || ext == ".xlsm" {
		fileType = "xlsx"
	}
	if mapping == nil {
		mapping = DefaultColumnMapping
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{filePath: filePath, fileType: fileType, mapping: mapping, logger: logger}
}

// ReadFrame loads the file, renames and drops columns, and lower-cases names.
func (r *DataReader) ReadFrame(ctx context.Context) (*dataset.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.filePath); err != nil {
		return nil, core.NewDataError("the file %s was not found", r.filePath)
	}
	r.logger.Info("[DataReader] Loading %s data from %s...", r.fileType, r.filePath)

	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch r.fileType {
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		rows, err = r.readCSVRows()
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("[DataReader] %s read in %.2fms (%d rows)", strings.ToUpper(r.fileType),
		float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	frame, err := r.processRows(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Info("[DataReader] Loaded %d rows. Columns standardized.", frame.NumRows())
	return frame, nil
}

// readExcelRows reads the first sheet of the workbook
func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, core.NewDataError("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.NewDataError("Excel file %s has no sheets", r.filePath)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, core.NewDataError("failed to read sheet %s: %v", sheets[0], err)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, core.NewDataError("failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, core.NewDataError("failed to read CSV file: %v", err)
	}
	return rows, nil
}

// processRows applies the column mapping and builds the frame
func (r *DataReader) processRows(rows [][]string) (*dataset.Frame, error) {
	if len(rows) == 0 {
		return nil, core.NewDataError("file %s has no header row", r.filePath)
	}

	var (
		keep    []int
		headers []string
	)
	for i, h := range rows[0] {
		if name := normalise(h, r.mapping); name != "" {
			keep = append(keep, i)
			headers = append(headers, name)
		}
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out := make([]string, len(keep))
		for j, i := range keep {
			if i < len(row) {
				out[j] = strings.TrimSpace(row[i])
			}
		}
		data = append(data, out)
	}
	return dataset.NewFrame(headers, data)
}
