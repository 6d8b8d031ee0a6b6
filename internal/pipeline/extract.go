package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/xuri/excelize/v2"

	"loanrisk/internal"
	"loanrisk/internal/metrics"
	"loanrisk/internal/util"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatEML  Format = "eml"
)

var errNoTable = errors.New("no header row found")

// FormatFromPath picks the loader from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".eml":
		return FormatEML, nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// Supported reports whether LoadTable knows how to read path.
func Supported(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil
}

// LoadTable reads the first table of a spreadsheet file. Every record gets a
// generated ID, 1..N in row order, placed as the first column.
func LoadTable(path string) (internal.Table, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return internal.Table{}, ioError("detect", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return internal.Table{}, ioError("open", path, err)
	}
	defer f.Close()

	table, err := LoadTableFromReader(f, format)
	if err != nil {
		return internal.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// LoadTableFromReader is LoadTable for an already open source.
func LoadTableFromReader(r io.Reader, format Format) (internal.Table, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return internal.Table{}, ioError("read", string(format), err)
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = parseXLSX(blob)
	case FormatCSV:
		rows, err = parseCSV(blob)
	case FormatHTML:
		rows, err = parseHTMLTable(blob)
	case FormatEML:
		return loadEmailAttachment(blob)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return internal.Table{}, ioError("parse", string(format), err)
	}

	table, err := buildTable(rows)
	if err != nil {
		return internal.Table{}, ioError("parse", string(format), err)
	}
	metrics.RowsLoaded.Add(float64(table.Len()))
	return table, nil
}

func parseXLSX(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if firstNonBlank(rows) >= 0 {
			return rows, nil
		}
	}
	return nil, errNoTable
}

func parseCSV(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func parseHTMLTable(content []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("no <table> element")
	}

	rows := [][]string{}
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := []string{}
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		rows = append(rows, cells)
	})
	return rows, nil
}

// loadEmailAttachment loads the first spreadsheet attached to a message.
func loadEmailAttachment(raw []byte) (internal.Table, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.Table{}, ioError("parse", string(FormatEML), err)
	}

	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for _, att := range parts {
		format, err := FormatFromPath(strings.TrimSpace(att.FileName))
		if err != nil || format == FormatEML {
			continue
		}
		table, err := LoadTableFromReader(bytes.NewReader(att.Content), format)
		if err != nil {
			return internal.Table{}, fmt.Errorf("attachment %s: %w", att.FileName, err)
		}
		return table, nil
	}
	return internal.Table{}, ioError("parse", string(FormatEML), errors.New("no spreadsheet attachment"))
}

// buildTable turns raw rows into a table. The first non-blank row is the
// header; blank rows after it are skipped.
func buildTable(rows [][]string) (internal.Table, error) {
	start := firstNonBlank(rows)
	if start < 0 {
		return internal.Table{}, errNoTable
	}

	header := rows[start]
	columns := []string{internal.ColID}
	index := make([]string, len(header))
	seen := map[string]int{internal.ColID: 1}
	for i, h := range header {
		name := util.CanonicalColumn(h)
		if name == internal.ColID {
			continue
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		index[i] = name
		columns = append(columns, name)
	}

	table := internal.Table{Columns: columns}
	for _, row := range rows[start+1:] {
		if isBlankRow(row) {
			continue
		}
		rec := internal.Record{ID: table.Len() + 1, Cells: make(map[string]internal.Cell, len(columns))}
		for i, value := range row {
			if i >= len(index) || index[i] == "" {
				continue
			}
			rec.Cells[index[i]] = internal.Cell{Raw: strings.TrimSpace(value)}
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func firstNonBlank(rows [][]string) int {
	for i, row := range rows {
		if !isBlankRow(row) {
			return i
		}
	}
	return -1
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
