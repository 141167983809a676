// Package loader reads tabular files from disk into datasets. CSV and TSV
// files go through encoding/csv; Parquet files are decoded column by column
// with github.com/parquet-go/parquet-go.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/scorefuse/scorefuse/schema"
)

// LoadDataset reads the file at path and builds a dataset from its numeric
// columns. The format is chosen by file extension: .csv, .tsv or .parquet.
// Columns that cannot be coerced to numbers are dropped.
func LoadDataset(path string) (*schema.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadDelimited(path, ',')
	case ".tsv":
		return loadDelimited(path, '\t')
	case ".parquet":
		return loadParquet(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file extension for %s (use .csv, .tsv or .parquet)",
			schema.ErrConfig, path)
	}
}

func loadDelimited(path string, comma rune) (*schema.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read header of %s: %w", path, err)
	}

	raw := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		for i := range header {
			raw[i] = append(raw[i], record[i])
		}
	}

	columns := make(map[string][]float64, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		values, ok := coerceNumeric(raw[i])
		if !ok {
			continue
		}
		columns[name] = values
	}
	return buildDataset(path, columns)
}

// coerceNumeric parses every cell of a column as a float. A single
// unparseable cell disqualifies the whole column.
func coerceNumeric(cells []string) ([]float64, bool) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func loadParquet(path string) (*schema.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("cannot read parquet file %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	columns := make(map[string][]float64, len(fields))
	dropped := make(map[string]struct{})
	for _, rowGroup := range pf.RowGroups() {
		for i, chunk := range rowGroup.ColumnChunks() {
			name := fields[i].Name()
			if _, skip := dropped[name]; skip {
				continue
			}
			values, ok, err := readNumericChunk(chunk)
			if err != nil {
				return nil, fmt.Errorf("cannot read column %s of %s: %w", name, path, err)
			}
			if !ok {
				// Non-numeric column, leave it out entirely.
				dropped[name] = struct{}{}
				delete(columns, name)
				continue
			}
			columns[name] = append(columns[name], values...)
		}
	}
	return buildDataset(path, columns)
}

// readNumericChunk decodes one column chunk, reporting ok=false for
// non-numeric physical types.
func readNumericChunk(chunk parquet.ColumnChunk) ([]float64, bool, error) {
	pages := chunk.Pages()
	defer func() { _ = pages.Close() }()

	var out []float64
	for {
		page, err := pages.ReadPage()
		if errors.Is(err, io.EOF) {
			return out, true, nil
		}
		if err != nil {
			return nil, false, err
		}

		buf := make([]parquet.Value, page.NumValues())
		reader := page.Values()
		for {
			n, err := reader.ReadValues(buf)
			for _, v := range buf[:n] {
				switch v.Kind() {
				case parquet.Double:
					out = append(out, v.Double())
				case parquet.Float:
					out = append(out, float64(v.Float()))
				case parquet.Int32:
					out = append(out, float64(v.Int32()))
				case parquet.Int64:
					out = append(out, float64(v.Int64()))
				default:
					return nil, false, nil
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, false, err
			}
		}
	}
}

func buildDataset(path string, columns map[string][]float64) (*schema.Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no numeric columns found in %s", schema.ErrConfig, path)
	}
	ds, err := schema.NewDataset(columns)
	if err != nil {
		return nil, fmt.Errorf("invalid data in %s: %w", path, err)
	}
	return ds, nil
}
