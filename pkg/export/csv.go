package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular content exchanged with the spreadsheet mirror.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVCodec renders and parses Dataset records as CSV bytes.
type CSVCodec struct{}

// NewCSVCodec builds a CSV codec.
func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVCodec) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes CSV bytes into a Dataset using the first record as headers.
func (e *CSVCodec) Parse(raw []byte) (Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("csv is empty")
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return Dataset{Headers: headers, Rows: rows}, nil
}
