// aggregate.go implements exact numeric computation over loaded tables.
// This engine never touches the vector index and never calls the
// generation capability - pure, synchronous, in-memory work.
package usecases

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/finrag/finrag-go/internal/domain/entities"
)

// Aggregate executes a structured aggregation over the table. Rows whose
// value does not coerce to a number are excluded from numeric operations
// rather than failing the whole computation. Every result carries the
// exact rows it was computed from, for citation.
func Aggregate(table *entities.Table, spec entities.AggregationSpec) (*entities.AggregationResult, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: table %q not loaded", ErrAggregation, spec.Table)
	}

	rows, err := filterRows(table, spec.Filter)
	if err != nil {
		return nil, err
	}

	switch spec.Op {
	case entities.OpSum:
		return sumRows(table, spec, rows)
	case entities.OpAverage:
		return averageRows(table, spec, rows)
	case entities.OpCount:
		return &entities.AggregationResult{
			Spec:      spec,
			Scalar:    float64(len(rows)),
			HasScalar: true,
			Rows:      rows,
		}, nil
	case entities.OpTopN:
		return topNRows(table, spec, rows)
	case entities.OpGroupBySum:
		return groupBySum(table, spec, rows)
	case entities.OpFilter:
		return &entities.AggregationResult{Spec: spec, Rows: rows}, nil
	default:
		return nil, fmt.Errorf("%w: unknown operation %d", ErrAggregation, spec.Op)
	}
}

func sumRows(table *entities.Table, spec entities.AggregationSpec, rows []entities.Row) (*entities.AggregationResult, error) {
	values, used, err := numericColumn(table, spec.Column, rows)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return &entities.AggregationResult{Spec: spec, Scalar: total, HasScalar: true, Rows: used}, nil
}

func averageRows(table *entities.Table, spec entities.AggregationSpec, rows []entities.Row) (*entities.AggregationResult, error) {
	values, used, err := numericColumn(table, spec.Column, rows)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no numeric values in column %q", ErrAggregation, spec.Column)
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return &entities.AggregationResult{
		Spec:      spec,
		Scalar:    total / float64(len(values)),
		HasScalar: true,
		Rows:      used,
	}, nil
}

func topNRows(table *entities.Table, spec entities.AggregationSpec, rows []entities.Row) (*entities.AggregationResult, error) {
	// n <= 0 is an empty result, not an error.
	if spec.N <= 0 {
		return &entities.AggregationResult{Spec: spec}, nil
	}
	values, used, err := numericColumn(table, spec.Column, rows)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		row   entities.Row
		value float64
	}
	order := make([]ranked, len(used))
	for i := range used {
		order[i] = ranked{row: used[i], value: values[i]}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].value != order[j].value {
			if spec.Descending {
				return order[i].value > order[j].value
			}
			return order[i].value < order[j].value
		}
		return order[i].row.RowIndex < order[j].row.RowIndex
	})

	n := spec.N
	if n > len(order) {
		n = len(order)
	}
	result := &entities.AggregationResult{Spec: spec}
	for _, r := range order[:n] {
		result.Pairs = append(result.Pairs, entities.KeyValue{Key: rowKey(r.row), Value: r.value})
		result.Rows = append(result.Rows, r.row)
	}
	return result, nil
}

func groupBySum(table *entities.Table, spec entities.AggregationSpec, rows []entities.Row) (*entities.AggregationResult, error) {
	if !table.HasColumn(spec.GroupColumn) {
		return nil, fmt.Errorf("%w: column %q not in %s", ErrAggregation, spec.GroupColumn, table.SourceFile)
	}
	if !table.HasColumn(spec.Column) {
		return nil, fmt.Errorf("%w: column %q not in %s", ErrAggregation, spec.Column, table.SourceFile)
	}

	totals := make(map[string]float64)
	var keys []string
	var used []entities.Row
	for _, row := range rows {
		group, ok := row.Field(spec.GroupColumn)
		if !ok {
			continue
		}
		value, ok := rowNumber(row, spec.Column)
		if !ok {
			continue
		}
		if _, seen := totals[group.Raw]; !seen {
			keys = append(keys, group.Raw)
		}
		totals[group.Raw] += value
		used = append(used, row)
	}

	// Largest group first; equal totals keep first-seen order.
	sort.SliceStable(keys, func(i, j int) bool { return totals[keys[i]] > totals[keys[j]] })

	result := &entities.AggregationResult{Spec: spec, Rows: used}
	for _, k := range keys {
		result.Pairs = append(result.Pairs, entities.KeyValue{Key: k, Value: totals[k]})
	}
	return result, nil
}

// filterRows applies the structured predicate, or returns all rows when
// the predicate is nil.
func filterRows(table *entities.Table, pred *entities.Predicate) ([]entities.Row, error) {
	if pred == nil {
		return table.Rows, nil
	}
	if !table.HasColumn(pred.Column) {
		return nil, fmt.Errorf("%w: filter column %q not in %s", ErrAggregation, pred.Column, table.SourceFile)
	}
	var out []entities.Row
	for _, row := range table.Rows {
		match, err := matchPredicate(row, pred)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, row)
		}
	}
	return out, nil
}

func matchPredicate(row entities.Row, pred *entities.Predicate) (bool, error) {
	field, ok := row.Field(pred.Column)
	if !ok {
		return false, nil
	}

	if fieldNum, numOK := fieldNumber(field); numOK {
		if want, wantOK := entities.ParseNumber(pred.Value); wantOK {
			switch pred.Comparator {
			case entities.CompareEq:
				return fieldNum == want, nil
			case entities.CompareNeq:
				return fieldNum != want, nil
			case entities.CompareLt:
				return fieldNum < want, nil
			case entities.CompareLte:
				return fieldNum <= want, nil
			case entities.CompareGt:
				return fieldNum > want, nil
			case entities.CompareGte:
				return fieldNum >= want, nil
			case entities.CompareContains:
				return strings.Contains(strings.ToLower(field.Raw), strings.ToLower(pred.Value)), nil
			}
		}
	}

	// String comparison; ordering comparators fall back to lexical order,
	// which is what ISO dates need.
	have := strings.TrimSpace(field.Raw)
	want := strings.TrimSpace(pred.Value)
	switch pred.Comparator {
	case entities.CompareEq:
		return strings.EqualFold(have, want), nil
	case entities.CompareNeq:
		return !strings.EqualFold(have, want), nil
	case entities.CompareLt:
		return have < want, nil
	case entities.CompareLte:
		return have <= want, nil
	case entities.CompareGt:
		return have > want, nil
	case entities.CompareGte:
		return have >= want, nil
	case entities.CompareContains:
		return strings.Contains(strings.ToLower(have), strings.ToLower(want)), nil
	}
	return false, fmt.Errorf("%w: unknown comparator %q", ErrAggregation, pred.Comparator)
}

// numericColumn extracts the numeric values of a column. Returned rows
// are exactly the rows whose value coerced, parallel to values.
func numericColumn(table *entities.Table, column string, rows []entities.Row) ([]float64, []entities.Row, error) {
	if !table.HasColumn(column) {
		return nil, nil, fmt.Errorf("%w: column %q not in %s", ErrAggregation, column, table.SourceFile)
	}
	var values []float64
	var used []entities.Row
	for _, row := range rows {
		if v, ok := rowNumber(row, column); ok {
			values = append(values, v)
			used = append(used, row)
		}
	}
	return values, used, nil
}

func rowNumber(row entities.Row, column string) (float64, bool) {
	field, ok := row.Field(column)
	if !ok {
		return 0, false
	}
	return fieldNumber(field)
}

func fieldNumber(field entities.Field) (float64, bool) {
	if field.IsNum {
		return field.Num, true
	}
	return entities.ParseNumber(field.Raw)
}

// rowKey labels a row in top-N output: the symbol when present,
// otherwise the first field's value.
func rowKey(row entities.Row) string {
	if f, ok := row.Field("symbol"); ok {
		return f.Raw
	}
	if len(row.Fields) > 0 {
		return row.Fields[0].Raw
	}
	return strconv.Itoa(row.RowIndex)
}

