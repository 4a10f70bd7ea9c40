// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code - just the query-understanding and
// evidence-assembly pipeline.
package usecases

import (
	"strconv"
	"strings"

	"github.com/finrag/finrag-go/internal/domain/entities"
)

// BuildDocuments converts every table row into a retrievable text
// document with provenance. Pure and deterministic: the same tables
// always yield the same documents in row order, and a row with an
// unparseable value is rendered from its raw text rather than dropped.
// Embeddings are attached later by the vector index.
func BuildDocuments(tables []*entities.Table) []entities.Document {
	var docs []entities.Document
	for _, t := range tables {
		for _, row := range t.Rows {
			docs = append(docs, entities.Document{
				Text:   RenderRow(row),
				Source: row.Source(),
			})
		}
	}
	return docs
}

// RenderRow produces the canonical text form of a row. Every column
// appears with its name and value so keyword-like phrases match
// naturally against questions.
func RenderRow(row entities.Row) string {
	var sb strings.Builder
	sb.WriteString("FILE: ")
	sb.WriteString(row.SourceFile)
	sb.WriteString(" | ROW: ")
	sb.WriteString(strconv.Itoa(row.RowIndex))
	for _, f := range row.Fields {
		sb.WriteString(" | ")
		sb.WriteString(f.Column)
		sb.WriteString("=")
		sb.WriteString(f.Raw)
	}
	return sb.String()
}
