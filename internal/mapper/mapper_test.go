package mapper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/models"
)

func TestDetectMapping(t *testing.T) {
	tests := []struct {
		name           string
		columnName     string
		samples        []string
		wantField      string
		wantConfidence float64
	}{
		{
			name:           "sku header",
			columnName:     "SKU",
			samples:        []string{"ATL-100"},
			wantField:      models.FieldSKU,
			wantConfidence: 0.9,
		},
		{
			name:           "product code header",
			columnName:     "Product_Code",
			samples:        []string{"X1"},
			wantField:      models.FieldSKU,
			wantConfidence: 0.9,
		},
		{
			name:           "french reference header",
			columnName:     "Référence",
			samples:        []string{"R-22"},
			wantField:      models.FieldSKU,
			wantConfidence: 0.9,
		},
		{
			name:           "price header",
			columnName:     "Price",
			samples:        []string{"10.99"},
			wantField:      models.FieldPrice,
			wantConfidence: 0.9,
		},
		{
			name:           "french price header",
			columnName:     "Prix unitaire",
			samples:        []string{"10,99 $"},
			wantField:      models.FieldPrice,
			wantConfidence: 0.9,
		},
		{
			name:           "name header",
			columnName:     "Product Name",
			samples:        []string{"Faucet"},
			wantField:      models.FieldName,
			wantConfidence: 0.85,
		},
		{
			name:           "french name header",
			columnName:     "Désignation",
			samples:        []string{"Robinet"},
			wantField:      models.FieldName,
			wantConfidence: 0.85,
		},
		{
			name:           "url header",
			columnName:     "Lien",
			samples:        []string{"https://example.com"},
			wantField:      models.FieldURL,
			wantConfidence: 0.85,
		},
		{
			name:           "category header",
			columnName:     "Famille",
			samples:        []string{"Plomberie"},
			wantField:      models.FieldCategory,
			wantConfidence: 0.8,
		},
		{
			name:           "brand header",
			columnName:     "Manufacturer",
			samples:        []string{"Atlantic"},
			wantField:      models.FieldBrand,
			wantConfidence: 0.8,
		},
		{
			name:           "price content heuristic",
			columnName:     "col_7",
			samples:        []string{"12.99", "5,49 $", "100"},
			wantField:      models.FieldPrice,
			wantConfidence: 0.7,
		},
		{
			name:           "heuristic rejects mixed content",
			columnName:     "col_7",
			samples:        []string{"12.99", "hello", "100"},
			wantField:      models.FieldIgnore,
			wantConfidence: 0.3,
		},
		{
			name:           "unknown column ignored",
			columnName:     "notes internes",
			samples:        []string{"abc", "def"},
			wantField:      models.FieldIgnore,
			wantConfidence: 0.3,
		},
		{
			name:           "empty samples ignored",
			columnName:     "misc",
			samples:        nil,
			wantField:      models.FieldIgnore,
			wantConfidence: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectMapping(tt.columnName, tt.samples)
			assert.Equal(t, tt.wantField, got.MappedField)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.columnName, got.ColumnName)
		})
	}
}

func TestDetectMappingDeterministic(t *testing.T) {
	// "description" is both a name keyword and could hold anything;
	// the verdict must not vary between calls
	first := DetectMapping("description", []string{"a", "b"})
	for i := 0; i < 50; i++ {
		again := DetectMapping("description", []string{"a", "b"})
		assert.Equal(t, first, again)
	}
	assert.Equal(t, models.FieldName, first.MappedField)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{raw: "12.99", want: 12.99},
		{raw: "$1,299.00", want: 1299.00},
		{raw: "129,99 $ CAD", want: 12999},
		{raw: "  45  ", want: 45},
		{raw: "gratuit", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePrice(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseCSV(t *testing.T) {
	data := "SKU,Name,Prix\nA-1,Faucet,12.99\nA-2,Sink,45.00\n,,\n"

	parsed, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"sku", "name", "prix"}, parsed.Headers)
	require.Len(t, parsed.Rows, 3)

	// Row numbers count the header as row one
	assert.Equal(t, "2", parsed.Rows[0][RowNumberKey])
	assert.Equal(t, "4", parsed.Rows[2][RowNumberKey])
	assert.Equal(t, "A-1", parsed.Rows[0]["sku"])
	assert.Equal(t, "12.99", parsed.Rows[0]["prix"])
	assert.Equal(t, "", parsed.Rows[2]["sku"])
}

func TestParseCSVEmptyFile(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDetectAll(t *testing.T) {
	data := "Code,Produit,Montant,Extra\nA-1,Faucet,12.99,x\nA-2,Sink,45.00,y\n"

	parsed, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)

	detections := DetectAll(parsed)
	require.Len(t, detections, 4)

	assert.Equal(t, models.FieldSKU, detections[0].MappedField)
	assert.Equal(t, models.FieldName, detections[1].MappedField)
	assert.Equal(t, models.FieldPrice, detections[2].MappedField)
	assert.Equal(t, models.FieldIgnore, detections[3].MappedField)

	// Samples carry at most three non-empty values
	assert.Equal(t, []string{"A-1", "A-2"}, detections[0].SampleValues)
}
