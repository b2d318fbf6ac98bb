// Package importer parses product CSV uploads and stages them against the
// existing catalog so duplicates are surfaced before anything is inserted.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"elifysis/backend/internal/domain"
)

var ErrMissingHeader = errors.New("csv header row is missing required columns")

// headerAliases maps canonical column names to the spellings accepted in
// uploaded files. Matching is case-insensitive and whitespace-tolerant.
var headerAliases = map[string][]string{
	"name":        {"name", "product", "product name"},
	"description": {"description", "desc"},
	"quantity":    {"quantity", "qty", "stock"},
	"buyprice":    {"buyprice", "buy price", "cost"},
	"sellprice":   {"sellprice", "sell price", "price"},
	"category":    {"category"},
	"supplier":    {"supplier", "supplier name"},
}

// Key normalizes a (name, category) pair into the identity used for
// duplicate detection: lowercased, trimmed, internal whitespace collapsed.
func Key(name string, category string) string {
	return normalize(name) + "|" + normalize(category)
}

func normalize(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// Parse reads the CSV stream and returns the well-formed rows plus per-line
// errors for the rest. A missing or unusable header fails the whole parse.
func Parse(r io.Reader) ([]domain.ImportRow, []domain.ImportRowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}
	columns, err := mapHeader(header)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]domain.ImportRow, 0, 64)
	rowErrors := make([]domain.ImportRowError, 0, 8)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, domain.ImportRowError{Line: line, Message: err.Error()})
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				// A read error from the underlying stream (a truncated or
				// over-limit upload) repeats on every call; stop here.
				break
			}
			continue
		}

		row, err := buildRow(record, columns, line)
		if err != nil {
			rowErrors = append(rowErrors, domain.ImportRowError{Line: line, Message: err.Error()})
			continue
		}
		rows = append(rows, row)
	}

	return rows, rowErrors, nil
}

// Plan splits parsed rows into new entries and duplicates. A row is a
// duplicate when its normalized (name, category) key already exists in the
// catalog or appeared earlier in the same batch.
func Plan(rows []domain.ImportRow, existing []domain.Product) domain.ImportPreview {
	seen := make(map[string]struct{}, len(existing)+len(rows))
	for _, product := range existing {
		seen[Key(product.Name, product.Category)] = struct{}{}
	}

	preview := domain.ImportPreview{
		NewRows:    make([]domain.ImportRow, 0, len(rows)),
		Duplicates: make([]domain.ImportRow, 0, 8),
	}
	for _, row := range rows {
		key := Key(row.Name, row.Category)
		if _, dup := seen[key]; dup {
			preview.Duplicates = append(preview.Duplicates, row)
			continue
		}
		seen[key] = struct{}{}
		preview.NewRows = append(preview.NewRows, row)
	}
	return preview
}

func mapHeader(header []string) (map[string]int, error) {
	byAlias := make(map[string]string)
	for canonical, aliases := range headerAliases {
		for _, alias := range aliases {
			byAlias[alias] = canonical
		}
	}

	columns := make(map[string]int, len(headerAliases))
	for idx, cell := range header {
		canonical, ok := byAlias[normalize(cell)]
		if !ok {
			continue
		}
		if _, dup := columns[canonical]; !dup {
			columns[canonical] = idx
		}
	}

	if _, ok := columns["name"]; !ok {
		return nil, fmt.Errorf("%w: name", ErrMissingHeader)
	}
	if _, ok := columns["sellprice"]; !ok {
		return nil, fmt.Errorf("%w: sellprice", ErrMissingHeader)
	}
	return columns, nil
}

func buildRow(record []string, columns map[string]int, line int) (domain.ImportRow, error) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	row := domain.ImportRow{
		Line:        line,
		Name:        cell("name"),
		Description: cell("description"),
		Category:    cell("category"),
		Supplier:    cell("supplier"),
	}
	if row.Name == "" {
		return domain.ImportRow{}, errors.New("name is required")
	}

	if raw := cell("quantity"); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty < 0 {
			return domain.ImportRow{}, fmt.Errorf("invalid quantity %q", raw)
		}
		row.Quantity = qty
	}

	buy, err := parsePriceCents(cell("buyprice"))
	if err != nil {
		return domain.ImportRow{}, err
	}
	row.BuyPriceCents = buy

	sell, err := parsePriceCents(cell("sellprice"))
	if err != nil {
		return domain.ImportRow{}, err
	}
	if sell < 1 {
		return domain.ImportRow{}, errors.New("sell price is required")
	}
	row.SellPriceCents = sell

	return row, nil
}

// parsePriceCents accepts decimal prices ("12.50") and returns cents.
func parsePriceCents(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	return int64(math.Round(value * 100)), nil
}
