// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"fmt"
	"strings"
)

// ColumnType classifies the values seen in one table column.
type ColumnType int

const (
	ColumnString ColumnType = iota
	ColumnNumber
	ColumnDate
)

// Field is one named cell of a row. Raw always holds the original text;
// Num is only meaningful when IsNum is true.
type Field struct {
	Column string
	Raw    string
	Num    float64
	IsNum  bool
}

// Row is one record from a source table.
// Immutable once loaded - tables are reloaded wholesale, never patched.
type Row struct {
	SourceFile string
	RowIndex   int
	Fields     []Field // ordered as in the source header
}

// Field returns the named field, matching case-insensitively.
func (r Row) Field(column string) (Field, bool) {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Column, column) {
			return f, true
		}
	}
	return Field{}, false
}

// Source identifies where a row came from.
func (r Row) Source() Source {
	return Source{File: r.SourceFile, RowIndex: r.RowIndex}
}

// Table is the structured in-memory view of one CSV source.
// Used only for exact computation, never for similarity search.
type Table struct {
	SourceFile string
	Columns    []string
	Types      []ColumnType // parallel to Columns
	Rows       []Row
}

// HasColumn reports whether the table declares the column (case-insensitive).
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// ColumnTypeOf returns the declared type for a column.
func (t *Table) ColumnTypeOf(name string) (ColumnType, bool) {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return t.Types[i], true
		}
	}
	return ColumnString, false
}

// Source identifies a document's origin row for citation.
type Source struct {
	File     string `json:"file"`
	RowIndex int    `json:"row_index"`
}

// Document is the retrievable rendering of one row.
// Owned by the vector index; never mutated after creation.
type Document struct {
	Text      string
	Embedding []float32
	Source    Source
}

// ScoredDocument is one ranked retrieval hit.
type ScoredDocument struct {
	Document Document
	Score    float64
}

// Turn is one exchange in a session, immutable once appended.
type Turn struct {
	Role    string // RoleUser or RoleAssistant
	Content string
	Sources []Source // assistant turns only
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session holds the bounded conversation history for one opaque id.
type Session struct {
	ID      string
	History []Turn // most-recent-last
}

// LastUserContent returns the most recent user turn's text, or "".
func (s *Session) LastUserContent() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i].Content
		}
	}
	return ""
}

// ChatRequest is the inbound core request.
type ChatRequest struct {
	SessionID string
	Message   string
	TopK      int
}

// ChatResponse is the outbound core response.
type ChatResponse struct {
	SessionID string
	Answer    string
	Sources   []Source
}

// Comparator is a structured filter operator. Predicates are never
// free-form code - the surface stays safe and enumerable.
type Comparator string

// Supported comparators.
const (
	CompareEq       Comparator = "="
	CompareNeq      Comparator = "!="
	CompareLt       Comparator = "<"
	CompareLte      Comparator = "<="
	CompareGt       Comparator = ">"
	CompareGte      Comparator = ">="
	CompareContains Comparator = "contains"
)

// Predicate is a structured row filter.
type Predicate struct {
	Column     string
	Comparator Comparator
	Value      string
}

// AggregationOp enumerates the fixed set of exact computations.
type AggregationOp int

// Aggregation operation kinds.
const (
	OpSum AggregationOp = iota
	OpAverage
	OpCount
	OpTopN
	OpGroupBySum
	OpFilter
)

// AggregationSpec is a structured aggregation request derived by the router.
type AggregationSpec struct {
	Table       string // source file name
	Op          AggregationOp
	Column      string
	GroupColumn string
	N           int
	Descending  bool
	Filter      *Predicate
}

// KeyValue is one entry of a top-N or group-by result.
type KeyValue struct {
	Key   string
	Value float64
}

// AggregationResult is a typed scalar or small tabular result plus the
// exact rows it was computed from.
type AggregationResult struct {
	Spec      AggregationSpec
	Scalar    float64
	HasScalar bool
	Pairs     []KeyValue
	Rows      []Row // contributing rows, for citation
}

// Statement renders the result as a plain grounding sentence.
func (a *AggregationResult) Statement() string {
	var sb strings.Builder
	switch a.Spec.Op {
	case OpSum:
		fmt.Fprintf(&sb, "Sum of %s in %s: %.2f", a.Spec.Column, a.Spec.Table, a.Scalar)
	case OpAverage:
		fmt.Fprintf(&sb, "Average %s in %s: %.2f", a.Spec.Column, a.Spec.Table, a.Scalar)
	case OpCount:
		fmt.Fprintf(&sb, "Count of matching rows in %s: %.0f", a.Spec.Table, a.Scalar)
	case OpTopN:
		order := "Bottom"
		if a.Spec.Descending {
			order = "Top"
		}
		fmt.Fprintf(&sb, "%s %d rows of %s by %s:", order, a.Spec.N, a.Spec.Table, a.Spec.Column)
		for _, p := range a.Pairs {
			fmt.Fprintf(&sb, " %s=%.2f", p.Key, p.Value)
		}
	case OpGroupBySum:
		fmt.Fprintf(&sb, "Sum of %s grouped by %s in %s:", a.Spec.Column, a.Spec.GroupColumn, a.Spec.Table)
		for _, p := range a.Pairs {
			fmt.Fprintf(&sb, " %s=%.2f", p.Key, p.Value)
		}
	case OpFilter:
		fmt.Fprintf(&sb, "%d matching rows in %s", len(a.Rows), a.Spec.Table)
	}
	if a.Spec.Filter != nil {
		fmt.Fprintf(&sb, " (where %s %s %s)", a.Spec.Filter.Column, a.Spec.Filter.Comparator, a.Spec.Filter.Value)
	}
	fmt.Fprintf(&sb, " [computed from %d rows]", len(a.Rows))
	return sb.String()
}

// PlanKind tags the router's decision.
type PlanKind int

// Evidence plan variants.
const (
	PlanRetrieval PlanKind = iota
	PlanAggregation
	PlanHybrid
)

// EvidencePlan is the router's decision of which evidence-gathering
// path(s) to execute for a question.
type EvidencePlan struct {
	Kind        PlanKind
	Query       string // retrieval query, possibly enriched with session entities
	Aggregation *AggregationSpec
}

// Evidence is what the gathering paths produced for the composer.
type Evidence struct {
	Aggregation *AggregationResult
	Retrieved   []ScoredDocument
}
