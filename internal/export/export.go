package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"CrowdedCOT/internal/domain/models"
	"CrowdedCOT/internal/services/positioning"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "positioning"

// WriteCSV writes a header row followed by one line per row. Nulls are empty
// cells.
func WriteCSV(w io.Writer, t *models.DerivedTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for i := range t.Rows {
		for j, v := range positioning.Record(t, i) {
			rec[j] = formatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// WriteJSON writes the table as an array of records whose keys follow the
// column order. Dates are ISO strings and nulls are JSON null.
func WriteJSON(w io.Writer, t *models.DerivedTable) error {
	bw := bufio.NewWriter(w)
	bw.WriteByte('[')
	for i := range t.Rows {
		if i > 0 {
			bw.WriteByte(',')
		}
		if err := writeObject(bw, t.Columns, positioning.Record(t, i)); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	bw.WriteByte(']')
	return bw.Flush()
}

// Record is one table row that marshals to a JSON object in column order.
type Record struct {
	columns []string
	values  []interface{}
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, r.columns, r.values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Records returns every row of t as an ordered JSON record.
func Records(t *models.DerivedTable) []Record {
	out := make([]Record, len(t.Rows))
	for i := range t.Rows {
		out[i] = Record{columns: t.Columns, values: positioning.Record(t, i)}
	}
	return out
}

type byteWriter interface {
	io.Writer
	io.ByteWriter
}

func writeObject(w byteWriter, columns []string, values []interface{}) error {
	w.WriteByte('{')
	for j, v := range values {
		if j > 0 {
			w.WriteByte(',')
		}
		k, err := json.Marshal(columns[j])
		if err != nil {
			return fmt.Errorf("encode key: %w", err)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", columns[j], err)
		}
		w.Write(k)
		w.WriteByte(':')
		w.Write(b)
	}
	return w.WriteByte('}')
}

// WriteXLSX writes a single-sheet workbook with a header row.
func WriteXLSX(w io.Writer, t *models.DerivedTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("xlsx stream: %w", err)
	}

	header := make([]interface{}, len(t.Columns))
	for j, col := range t.Columns {
		header[j] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for i := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		rec := positioning.Record(t, i)
		for j, v := range rec {
			if v == nil {
				rec[j] = ""
			}
		}
		if err := sw.SetRow(cell, rec); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx flush: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// Write encodes t in the given format.
func Write(w io.Writer, format Format, t *models.DerivedTable) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, true
	case ".json":
		return FormatJSON, true
	case ".xlsx":
		return FormatXLSX, true
	}
	return "", false
}

// ToFile writes t to path, creating parent directories.
func ToFile(path string, format Format, t *models.DerivedTable) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, format, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
