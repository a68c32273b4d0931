package currency

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "orusfx/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Round(t *testing.T) {
	table := Default()

	tests := []struct {
		name   string
		amount string
		code   string
		want   string
	}{
		{"two places", "8224.755", "INR", "8224.76"},
		{"half even down", "10.125", "USD", "10.12"},
		{"half even up", "10.135", "USD", "10.14"},
		{"zero places", "151.5", "JPY", "152"},
		{"zero places even", "152.5", "JPY", "152"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Round(decimal.RequireFromString(tt.amount), tt.code)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestTable_Exact(t *testing.T) {
	table := Default()

	assert.True(t, table.Exact(decimal.RequireFromString("100.00"), "USD"))
	assert.True(t, table.Exact(decimal.RequireFromString("100.1"), "USD"))
	assert.False(t, table.Exact(decimal.RequireFromString("100.005"), "USD"))
	assert.True(t, table.Exact(decimal.RequireFromString("150"), "JPY"))
	assert.False(t, table.Exact(decimal.RequireFromString("150.5"), "JPY"))
}

func TestTable_Normalize(t *testing.T) {
	table := Default()

	code, err := table.Normalize(" usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", code)

	_, err = table.Normalize("XXX")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCurrency))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "currencies.yaml")
	content := `base: EUR
currencies:
  - code: EUR
    precision: 2
    rate: "1"
  - code: jpy
    precision: 0
    rate: "162.4"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", table.Base())
	assert.Equal(t, []string{"EUR", "JPY"}, table.Codes())
	assert.Equal(t, int32(0), table.Precision("JPY"))

	rates, err := table.StaticRates()
	require.NoError(t, err)
	assert.True(t, rates["JPY"].Equal(decimal.RequireFromString("162.4")))
}

func TestNewTable_RejectsMissingBase(t *testing.T) {
	_, err := NewTable("USD", []Currency{{Code: "EUR", Precision: 2}})
	assert.Error(t, err)
}
