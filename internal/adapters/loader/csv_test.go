package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrag/finrag-go/internal/domain/entities"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_TypedTable(t *testing.T) {
	path := writeCSV(t, "holdings.csv",
		"symbol,quantity,value,purchase_date\n"+
			"AAPL,100,\"$17,500.00\",2024-01-02\n"+
			"GOOGL,50,$6950.00,2024-03-01\n"+
			"MSFT,75,$28125.00,2024-03-20\n")

	tables, err := NewCSVSource(path).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, tables, 1)
	table := tables[0]
	assert.Equal(t, "holdings.csv", table.SourceFile)
	assert.Equal(t, []string{"symbol", "quantity", "value", "purchase_date"}, table.Columns)
	assert.Equal(t, []entities.ColumnType{
		entities.ColumnString, entities.ColumnNumber, entities.ColumnNumber, entities.ColumnDate,
	}, table.Types)

	require.Len(t, table.Rows, 3)
	field, ok := table.Rows[0].Field("value")
	require.True(t, ok)
	assert.Equal(t, "$17,500.00", field.Raw, "raw cell text survives for rendering")
	assert.True(t, field.IsNum)
	assert.InDelta(t, 17500.00, field.Num, 1e-9)
}

func TestLoad_RowIndicesAreZeroBasedDataRows(t *testing.T) {
	path := writeCSV(t, "trades.csv",
		"symbol,side\nAAPL,BUY\nGOOGL,SELL\n")

	tables, err := NewCSVSource(path).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, tables[0].Rows, 2)
	assert.Equal(t, 0, tables[0].Rows[0].RowIndex)
	assert.Equal(t, 1, tables[0].Rows[1].RowIndex)
}

func TestLoad_UnparseableNumericCellKeptRaw(t *testing.T) {
	path := writeCSV(t, "holdings.csv",
		"symbol,value\nAAPL,17500.00\nGOOGL,6950.00\nBADCO,pending\n")

	tables, err := NewCSVSource(path).Load(context.Background())

	require.NoError(t, err)
	table := tables[0]
	ct, _ := table.ColumnTypeOf("value")
	assert.Equal(t, entities.ColumnNumber, ct, "2 of 3 values coerce, column stays numeric")

	field, ok := table.Rows[2].Field("value")
	require.True(t, ok)
	assert.Equal(t, "pending", field.Raw)
	assert.False(t, field.IsNum)
}

func TestLoad_RaggedRowsPadded(t *testing.T) {
	path := writeCSV(t, "trades.csv",
		"symbol,side,price\nAAPL,BUY,150.00\nGOOGL,SELL\n")

	tables, err := NewCSVSource(path).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, tables[0].Rows, 2)
	field, ok := tables[0].Rows[1].Field("price")
	require.True(t, ok)
	assert.Equal(t, "", field.Raw)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv")).Load(context.Background())
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeCSV(t, "empty.csv", "")
	_, err := NewCSVSource(path).Load(context.Background())
	assert.Error(t, err)
}

func TestLoad_MultipleFilesKeepOrder(t *testing.T) {
	holdings := writeCSV(t, "holdings.csv", "symbol,value\nAAPL,17500.00\n")
	trades := writeCSV(t, "trades.csv", "symbol,side\nAAPL,BUY\n")

	tables, err := NewCSVSource(holdings, trades).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "holdings.csv", tables[0].SourceFile)
	assert.Equal(t, "trades.csv", tables[1].SourceFile)
}

func TestLoad_CancelledContext(t *testing.T) {
	path := writeCSV(t, "holdings.csv", "symbol\nAAPL\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVSource(path).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
