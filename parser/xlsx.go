package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrRegistryColumns is returned when a registry sheet lacks the
// official_number column.
var ErrRegistryColumns = errors.New("parser: registry sheet has no official_number column")

// RegistryEntry is one known law from a registry spreadsheet.
type RegistryEntry struct {
	OfficialNumber string
	Type           string
	EnactmentDate  string
	Title          string
	URL            string
	Row            int // 1-based sheet row
}

// registryColumns maps accepted header names onto entry fields.
var registryColumns = map[string]string{
	"official_number": "number", "numero": "number", "número": "number", "number": "number",
	"type": "type", "tipo": "type", "law_type": "type",
	"enactment_date": "date", "data": "date", "date": "date", "data_publicacao": "date",
	"title": "title", "titulo": "title", "título": "title", "official_title": "title",
	"url": "url", "link": "url",
}

// ReadLawRegistry reads the first sheet of an .xlsx law registry. The first
// row is the header; rows without an official number are skipped.
func ReadLawRegistry(ctx context.Context, path string) ([]RegistryEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
		if field, ok := registryColumns[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["number"]; !ok {
		return nil, ErrRegistryColumns
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []RegistryEntry
	for n, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := RegistryEntry{
			OfficialNumber: cell(row, "number"),
			Type:           cell(row, "type"),
			EnactmentDate:  cell(row, "date"),
			Title:          cell(row, "title"),
			URL:            cell(row, "url"),
			Row:            n + 2,
		}
		if e.OfficialNumber == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
