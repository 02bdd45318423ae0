package catalog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBadHeader is returned when no header row names the required columns.
var ErrBadHeader = errors.New("import file needs vendor, product and version columns")

// headerRows is how many leading rows may hold the header.
const headerRows = 3

// ReadRows parses a category import file. The header, found within the
// first three rows, must name vendor, product and version columns and may
// name a tag column. Rows missing any required value are dropped.
func ReadRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cols, start := map[string]int{}, -1
	for i := 0; i < len(records) && i < headerRows; i++ {
		found := map[string]int{}
		for j, cell := range records[i] {
			switch name := strings.ToLower(strings.TrimSpace(cell)); name {
			case "vendor", "product", "version", "tag":
				found[name] = j
			}
		}
		if _, ok := found["vendor"]; ok {
			cols, start = found, i+1
		}
	}
	for _, required := range []string{"vendor", "product", "version"} {
		if _, ok := cols[required]; !ok {
			return nil, ErrBadHeader
		}
	}

	var rows []Row
	for _, rec := range records[start:] {
		row := Row{
			Vendor:  cell(rec, cols, "vendor"),
			Product: cell(rec, cols, "product"),
			Version: cell(rec, cols, "version"),
			Tag:     cell(rec, cols, "tag"),
		}
		if row.Vendor == "" || row.Product == "" || row.Version == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ReadNames reads one CPE name per line, ignoring blanks and # comments.
func ReadNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}
	return names, nil
}
