package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrag/finrag-go/internal/domain/entities"
)

func TestAggregate_SumCitesAllRows(t *testing.T) {
	table := holdingsFixture()
	result, err := Aggregate(table, entities.AggregationSpec{
		Table: "holdings.csv", Op: entities.OpSum, Column: "value",
	})

	require.NoError(t, err)
	assert.True(t, result.HasScalar)
	assert.InDelta(t, 52575.00, result.Scalar, 1e-9)
	assert.Len(t, result.Rows, 3)
}

func TestAggregate_TopNDescending(t *testing.T) {
	table := holdingsFixture()
	result, err := Aggregate(table, entities.AggregationSpec{
		Table: "holdings.csv", Op: entities.OpTopN, Column: "value", N: 2, Descending: true,
	})

	require.NoError(t, err)
	require.Len(t, result.Pairs, 2)
	assert.Equal(t, "MSFT", result.Pairs[0].Key)
	assert.InDelta(t, 28125.00, result.Pairs[0].Value, 1e-9)
	assert.Equal(t, "AAPL", result.Pairs[1].Key)
	assert.InDelta(t, 17500.00, result.Pairs[1].Value, 1e-9)
}

func TestAggregate_TopNZeroIsEmptyNotError(t *testing.T) {
	result, err := Aggregate(holdingsFixture(), entities.AggregationSpec{
		Table: "holdings.csv", Op: entities.OpTopN, Column: "value", N: 0, Descending: true,
	})

	require.NoError(t, err)
	assert.Empty(t, result.Pairs)
	assert.Empty(t, result.Rows)
}

func TestAggregate_Average(t *testing.T) {
	result, err := Aggregate(tradesFixture(), entities.AggregationSpec{
		Table: "trades.csv", Op: entities.OpAverage, Column: "price",
	})

	require.NoError(t, err)
	assert.InDelta(t, (150.00+175.00+139.00+375.00)/4, result.Scalar, 1e-9)
	assert.Len(t, result.Rows, 4)
}

func TestAggregate_CountWithSymbolFilter(t *testing.T) {
	result, err := Aggregate(tradesFixture(), entities.AggregationSpec{
		Table: "trades.csv", Op: entities.OpCount,
		Filter: &entities.Predicate{Column: "symbol", Comparator: entities.CompareEq, Value: "AAPL"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2.0, result.Scalar)
	assert.Len(t, result.Rows, 2)
}

func TestAggregate_NetPositionSumsQuantity(t *testing.T) {
	result, err := Aggregate(tradesFixture(), entities.AggregationSpec{
		Table: "trades.csv", Op: entities.OpSum, Column: "quantity",
		Filter: &entities.Predicate{Column: "symbol", Comparator: entities.CompareEq, Value: "AAPL"},
	})

	require.NoError(t, err)
	assert.InDelta(t, 60, result.Scalar, 1e-9) // 100 bought, 40 sold
}

func TestAggregate_GroupBySum(t *testing.T) {
	result, err := Aggregate(tradesFixture(), entities.AggregationSpec{
		Table: "trades.csv", Op: entities.OpGroupBySum, Column: "pnl", GroupColumn: "symbol",
	})

	require.NoError(t, err)
	require.Len(t, result.Pairs, 3)
	// Largest total first.
	assert.Equal(t, "AAPL", result.Pairs[0].Key)
	assert.InDelta(t, 1000.00, result.Pairs[0].Value, 1e-9)
}

func TestAggregate_GreaterThanFilter(t *testing.T) {
	result, err := Aggregate(holdingsFixture(), entities.AggregationSpec{
		Table: "holdings.csv", Op: entities.OpFilter,
		Filter: &entities.Predicate{Column: "value", Comparator: entities.CompareGt, Value: "10000"},
	})

	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 0, result.Rows[0].RowIndex) // AAPL
	assert.Equal(t, 2, result.Rows[1].RowIndex) // MSFT
}

func TestAggregate_ContainsFilter(t *testing.T) {
	result, err := Aggregate(holdingsFixture(), entities.AggregationSpec{
		Table: "holdings.csv", Op: entities.OpCount,
		Filter: &entities.Predicate{Column: "sector", Comparator: entities.CompareContains, Value: "tech"},
	})

	require.NoError(t, err)
	assert.Equal(t, 3.0, result.Scalar)
}

func TestAggregate_CurrencyValuesCoerce(t *testing.T) {
	table := &entities.Table{
		SourceFile: "holdings.csv",
		Columns:    []string{"symbol", "value"},
		Types:      []entities.ColumnType{entities.ColumnString, entities.ColumnNumber},
		Rows: []entities.Row{
			{SourceFile: "holdings.csv", RowIndex: 0, Fields: []entities.Field{
				{Column: "symbol", Raw: "AAPL"}, {Column: "value", Raw: "$1,234.50"},
			}},
			{SourceFile: "holdings.csv", RowIndex: 1, Fields: []entities.Field{
				{Column: "symbol", Raw: "GOOGL"}, {Column: "value", Raw: "$765.50"},
			}},
		},
	}

	result, err := Aggregate(table, entities.AggregationSpec{
		Table: "holdings.csv", Op: entities.OpSum, Column: "value",
	})

	require.NoError(t, err)
	assert.InDelta(t, 2000.00, result.Scalar, 1e-9)
}

func TestAggregate_NonNumericRowExcludedNotFatal(t *testing.T) {
	table := holdingsFixture()
	table.Rows = append(table.Rows, entities.Row{
		SourceFile: "holdings.csv", RowIndex: 3,
		Fields: []entities.Field{
			{Column: "symbol", Raw: "BADCO"},
			{Column: "quantity", Raw: "10", Num: 10, IsNum: true},
			{Column: "value", Raw: "pending"},
			{Column: "sector", Raw: "Unknown"},
		},
	})

	result, err := Aggregate(table, entities.AggregationSpec{
		Table: "holdings.csv", Op: entities.OpSum, Column: "value",
	})

	require.NoError(t, err)
	assert.InDelta(t, 52575.00, result.Scalar, 1e-9)
	assert.Len(t, result.Rows, 3, "the unparseable row is excluded, not fatal")
}

func TestAggregate_UnknownColumnIsAggregationError(t *testing.T) {
	_, err := Aggregate(holdingsFixture(), entities.AggregationSpec{
		Table: "holdings.csv", Op: entities.OpSum, Column: "market_cap",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAggregation)
}

func TestAggregate_NilTable(t *testing.T) {
	_, err := Aggregate(nil, entities.AggregationSpec{Table: "missing.csv", Op: entities.OpCount})
	assert.ErrorIs(t, err, ErrAggregation)
}
