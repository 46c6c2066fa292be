package mapper

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"pricing-service/internal/models"
)

// RowNumberKey carries the original file row number through parsing.
// Row numbers are 1-indexed counting the header row, so the first data
// row is row 2.
const RowNumberKey = "_row"

// fieldKeywords maps a semantic field to its header keywords and the
// confidence assigned when one matches. English and French headers are
// both recognized. Detection walks detectionOrder so results are
// deterministic regardless of map iteration.
type fieldKeywords struct {
	field      string
	keywords   []string
	confidence float64
}

var detectionOrder = []fieldKeywords{
	{field: models.FieldSKU, keywords: []string{"sku", "code", "ref", "référence", "product_code", "item_code"}, confidence: 0.9},
	{field: models.FieldName, keywords: []string{"nom", "name", "titre", "title", "description", "produit", "product", "désignation"}, confidence: 0.85},
	{field: models.FieldPrice, keywords: []string{"prix", "price", "cost", "coût", "tarif", "montant"}, confidence: 0.9},
	{field: models.FieldCategory, keywords: []string{"catégorie", "category", "cat", "type", "famille"}, confidence: 0.8},
	{field: models.FieldBrand, keywords: []string{"marque", "brand", "fabricant", "manufacturer"}, confidence: 0.8},
	{field: models.FieldURL, keywords: []string{"url", "link", "lien", "web", "site"}, confidence: 0.85},
}

const (
	priceHeuristicConfidence = 0.7
	ignoreConfidence         = 0.3
	priceSampleCount         = 3
)

// DetectMapping proposes a semantic field for one source column based on
// its header and up to three sample values. Pure; same inputs always
// yield the same verdict.
func DetectMapping(columnName string, sampleValues []string) models.ColumnDetection {
	lower := strings.ToLower(strings.TrimSpace(columnName))

	for _, fk := range detectionOrder {
		for _, kw := range fk.keywords {
			if strings.Contains(lower, kw) {
				return models.ColumnDetection{
					ColumnName:   columnName,
					MappedField:  fk.field,
					Confidence:   fk.confidence,
					SampleValues: sampleValues,
				}
			}
		}
	}

	// Header told us nothing; if the first few values all look like
	// prices, call it a price column at reduced confidence.
	if looksLikePrices(sampleValues) {
		return models.ColumnDetection{
			ColumnName:   columnName,
			MappedField:  models.FieldPrice,
			Confidence:   priceHeuristicConfidence,
			SampleValues: sampleValues,
		}
	}

	return models.ColumnDetection{
		ColumnName:   columnName,
		MappedField:  models.FieldIgnore,
		Confidence:   ignoreConfidence,
		SampleValues: sampleValues,
	}
}

// looksLikePrices reports whether the first non-empty samples (up to
// three) all parse as positive prices
func looksLikePrices(samples []string) bool {
	checked := 0
	for _, s := range samples {
		if strings.TrimSpace(s) == "" {
			continue
		}
		price, err := ParsePrice(s)
		if err != nil || price <= 0 {
			return false
		}
		checked++
		if checked == priceSampleCount {
			break
		}
	}
	return checked > 0
}

// ParsePrice strips everything except digits and dots from a raw value
// and parses the remainder as a price. Handles currency symbols,
// thousands spacers and unit suffixes the way scraped catalogs carry
// them.
func ParsePrice(raw string) (float64, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric content in %q", raw)
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	return price, nil
}

// ParsedFile is the result of parsing an uploaded catalog file
type ParsedFile struct {
	Headers []string
	Rows    []map[string]string
}

// ParseCSV parses a CSV stream into header-keyed rows
func ParseCSV(file io.Reader) (*ParsedFile, error) {
	reader := csv.NewReader(file)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
	}

	var rows []map[string]string
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", lineNum+1, err)
		}

		row := make(map[string]string)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row[RowNumberKey] = strconv.Itoa(lineNum + 1)
		rows = append(rows, row)
		lineNum++
	}

	return &ParsedFile{Headers: headers, Rows: rows}, nil
}

// ParseXLSX parses the first sheet of an Excel file into header-keyed rows
func ParseXLSX(file io.Reader) (*ParsedFile, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	excelRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(excelRows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	headers := excelRows[0]
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
	}

	var rows []map[string]string
	for rowIdx, excelRow := range excelRows[1:] {
		row := make(map[string]string)
		for i, value := range excelRow {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row[RowNumberKey] = strconv.Itoa(rowIdx + 2)
		rows = append(rows, row)
	}

	return &ParsedFile{Headers: headers, Rows: rows}, nil
}

// DetectAll runs mapping detection over every column of a parsed file,
// sampling up to three non-empty values per column
func DetectAll(parsed *ParsedFile) []models.ColumnDetection {
	detections := make([]models.ColumnDetection, 0, len(parsed.Headers))
	for _, header := range parsed.Headers {
		samples := sampleColumn(parsed.Rows, header, priceSampleCount)
		detections = append(detections, DetectMapping(header, samples))
	}
	return detections
}

func sampleColumn(rows []map[string]string, header string, limit int) []string {
	samples := make([]string, 0, limit)
	for _, row := range rows {
		value := strings.TrimSpace(row[header])
		if value == "" {
			continue
		}
		samples = append(samples, value)
		if len(samples) == limit {
			break
		}
	}
	return samples
}
