package usecases

import (
	"github.com/finrag/finrag-go/internal/domain/entities"
)

// Fixture tables shared across the pipeline tests.

func holdingsFixture() *entities.Table {
	return &entities.Table{
		SourceFile: "holdings.csv",
		Columns:    []string{"symbol", "quantity", "value", "sector"},
		Types: []entities.ColumnType{
			entities.ColumnString, entities.ColumnNumber, entities.ColumnNumber, entities.ColumnString,
		},
		Rows: []entities.Row{
			fixtureRow("holdings.csv", 0, [][2]string{{"symbol", "AAPL"}, {"quantity", "100"}, {"value", "17500.00"}, {"sector", "Technology"}}),
			fixtureRow("holdings.csv", 1, [][2]string{{"symbol", "GOOGL"}, {"quantity", "50"}, {"value", "6950.00"}, {"sector", "Technology"}}),
			fixtureRow("holdings.csv", 2, [][2]string{{"symbol", "MSFT"}, {"quantity", "75"}, {"value", "28125.00"}, {"sector", "Technology"}}),
		},
	}
}

func tradesFixture() *entities.Table {
	return &entities.Table{
		SourceFile: "trades.csv",
		Columns:    []string{"symbol", "side", "quantity", "price", "pnl", "date"},
		Types: []entities.ColumnType{
			entities.ColumnString, entities.ColumnString, entities.ColumnNumber,
			entities.ColumnNumber, entities.ColumnNumber, entities.ColumnDate,
		},
		Rows: []entities.Row{
			fixtureRow("trades.csv", 0, [][2]string{{"symbol", "AAPL"}, {"side", "BUY"}, {"quantity", "100"}, {"price", "150.00"}, {"pnl", "0"}, {"date", "2024-01-02"}}),
			fixtureRow("trades.csv", 1, [][2]string{{"symbol", "AAPL"}, {"side", "SELL"}, {"quantity", "-40"}, {"price", "175.00"}, {"pnl", "1000.00"}, {"date", "2024-02-15"}}),
			fixtureRow("trades.csv", 2, [][2]string{{"symbol", "GOOGL"}, {"side", "BUY"}, {"quantity", "50"}, {"price", "139.00"}, {"pnl", "0"}, {"date", "2024-03-01"}}),
			fixtureRow("trades.csv", 3, [][2]string{{"symbol", "MSFT"}, {"side", "BUY"}, {"quantity", "75"}, {"price", "375.00"}, {"pnl", "-250.00"}, {"date", "2024-03-20"}}),
		},
	}
}

func fixtureTables() []*entities.Table {
	return []*entities.Table{holdingsFixture(), tradesFixture()}
}

func fixtureRow(file string, index int, pairs [][2]string) entities.Row {
	row := entities.Row{SourceFile: file, RowIndex: index}
	for _, p := range pairs {
		field := entities.Field{Column: p[0], Raw: p[1]}
		if v, ok := entities.ParseNumber(p[1]); ok && p[0] != "symbol" && p[0] != "side" && p[0] != "date" {
			field.Num = v
			field.IsNum = true
		}
		row.Fields = append(row.Fields, field)
	}
	return row
}
