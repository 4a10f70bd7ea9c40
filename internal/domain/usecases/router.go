// router.go classifies questions into evidence plans. Classification is
// deterministic and rule-based - lexical cues decide whether a question
// needs exact aggregation, semantic retrieval, or both - so routing is
// unit-testable without any model in the loop.
package usecases

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/finrag/finrag-go/internal/domain/entities"
)

var (
	aggCueRe = regexp.MustCompile(`\b(total|sum|average|avg|mean|count|how many|top|bottom|highest|lowest|largest|smallest|max|min|net|aggregate|calculate|compute)\b`)

	// Open-ended descriptive cues. A question carrying both cue families
	// gets a hybrid plan.
	descriptiveCueRe = regexp.MustCompile(`\b(describe|tell me|explain|why|detail|details|show me|list|which)\b`)

	topNRe     = regexp.MustCompile(`\b(?:top|bottom)\s+(\d+)`)
	overAmtRe  = regexp.MustCompile(`\b(?:over|above|more than|greater than|at least)\s+\$?([\d,.]+)`)
	underAmtRe = regexp.MustCompile(`\b(?:under|below|less than|at most)\s+\$?([\d,.]+)`)
	tickerRe   = regexp.MustCompile(`(?i:for|in|of)\s+([A-Z]{1,5})\b`)
	wordRe     = regexp.MustCompile(`[a-zA-Z_]+`)
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "for": true,
	"is": true, "are": true, "was": true, "what": true, "whats": true,
	"how": true, "many": true, "much": true, "my": true, "me": true,
	"top": true, "bottom": true, "total": true, "sum": true, "average": true,
	"avg": true, "mean": true, "count": true, "net": true, "max": true,
	"min": true, "highest": true, "lowest": true, "largest": true,
	"smallest": true, "aggregate": true, "calculate": true, "compute": true,
	"show": true, "list": true, "all": true, "and": true, "with": true,
	"holding": true, "holdings": true, "trade": true, "trades": true,
	"position": true, "positions": true, "portfolio": true, "by": true,
	"per": true, "each": true, "about": true, "over": true, "under": true,
	"above": true, "below": true,
}

// Route builds the evidence plan for a question. History supplies the
// session awareness: when the question itself names no symbol or table,
// the most recent user turns fill them in.
func Route(question string, history []entities.Turn, tables []*entities.Table) entities.EvidencePlan {
	q := strings.ToLower(question)

	symbol := findSymbol(question, tables)
	if symbol == "" {
		symbol = symbolFromHistory(history, tables)
	}

	table := tableByMention(q, tables)
	if table == nil {
		table = tableFromHistory(history, tables)
	}

	var spec *entities.AggregationSpec
	if aggCueRe.MatchString(q) {
		spec = buildAggregationSpec(q, table, tables, symbol)
	}

	query := retrievalQuery(question, symbol, table)

	switch {
	case spec != nil && descriptiveCueRe.MatchString(q):
		return entities.EvidencePlan{Kind: entities.PlanHybrid, Query: query, Aggregation: spec}
	case spec != nil:
		return entities.EvidencePlan{Kind: entities.PlanAggregation, Query: query, Aggregation: spec}
	default:
		// No aggregation cue, or the cue did not resolve against any
		// loaded column: retrieval-only.
		return entities.EvidencePlan{Kind: entities.PlanRetrieval, Query: query}
	}
}

// buildAggregationSpec matches the question against the fixed rule set,
// first match wins. Returns nil when no rule resolves.
func buildAggregationSpec(q string, table *entities.Table, tables []*entities.Table, symbol string) *entities.AggregationSpec {
	// Net position: sum of quantity over trades for a symbol.
	if strings.Contains(q, "net") && strings.Contains(q, "position") {
		trades := tableByName(tables, "trades")
		if trades != nil && trades.HasColumn("quantity") && symbol != "" {
			return &entities.AggregationSpec{
				Table:  trades.SourceFile,
				Op:     entities.OpSum,
				Column: resolvedName(trades, "quantity"),
				Filter: symbolFilter(trades, symbol),
			}
		}
		return nil
	}

	// Group-by: "value by sector", "pnl per symbol".
	if groupCol, valueCol, t := groupBySpec(q, table, tables); t != nil {
		return &entities.AggregationSpec{
			Table:       t.SourceFile,
			Op:          entities.OpGroupBySum,
			Column:      valueCol,
			GroupColumn: groupCol,
		}
	}

	// Top/bottom N by some column.
	if strings.Contains(q, "top") || strings.Contains(q, "bottom") ||
		strings.Contains(q, "highest") || strings.Contains(q, "lowest") ||
		strings.Contains(q, "largest") || strings.Contains(q, "smallest") {
		n := 5
		if m := topNRe.FindStringSubmatch(q); m != nil {
			if parsed, err := strconv.Atoi(m[1]); err == nil {
				n = parsed
			}
		}
		descending := !strings.Contains(q, "bottom") && !strings.Contains(q, "lowest") && !strings.Contains(q, "smallest")
		column, t := resolveMetric(q, table, tables, "value")
		if t == nil {
			return nil
		}
		return &entities.AggregationSpec{
			Table:      t.SourceFile,
			Op:         entities.OpTopN,
			Column:     column,
			N:          n,
			Descending: descending,
			Filter:     amountFilter(q, t, column),
		}
	}

	// Count: "how many trades", "count of holdings over $10000".
	if strings.Contains(q, "how many") || strings.Contains(q, "count") {
		t := table
		if t == nil {
			t = tableByName(tables, "trades")
		}
		if t == nil {
			return nil
		}
		filter := amountFilterAny(q, t)
		if filter == nil && symbol != "" {
			filter = symbolFilter(t, symbol)
		}
		return &entities.AggregationSpec{Table: t.SourceFile, Op: entities.OpCount, Filter: filter}
	}

	// Average.
	if strings.Contains(q, "average") || strings.Contains(q, "avg") || strings.Contains(q, "mean") {
		column, t := resolveMetric(q, table, tables, "price")
		if t == nil {
			return nil
		}
		spec := &entities.AggregationSpec{Table: t.SourceFile, Op: entities.OpAverage, Column: column}
		if symbol != "" {
			spec.Filter = symbolFilter(t, symbol)
		}
		return spec
	}

	// Sum / total.
	if strings.Contains(q, "total") || strings.Contains(q, "sum ") || strings.HasSuffix(q, "sum") || strings.Contains(q, "sum of") {
		column, t := resolveMetric(q, table, tables, "")
		if t == nil {
			return nil
		}
		spec := &entities.AggregationSpec{Table: t.SourceFile, Op: entities.OpSum, Column: column}
		if symbol != "" {
			spec.Filter = symbolFilter(t, symbol)
		}
		return spec
	}

	// Plain threshold question with an aggregation verb that did not
	// resolve elsewhere, e.g. "calculate holdings over $10000".
	if t := table; t != nil {
		if filter := amountFilterAny(q, t); filter != nil {
			return &entities.AggregationSpec{Table: t.SourceFile, Op: entities.OpFilter, Filter: filter}
		}
	}

	return nil
}

// resolveMetric finds the numeric column the question refers to. Exact
// word match wins; otherwise the longest common substring against known
// column names decides. The table is picked alongside the column: the
// preferred table first, then any table that resolves.
func resolveMetric(q string, preferred *entities.Table, tables []*entities.Table, fallback string) (string, *entities.Table) {
	candidates := tables
	if preferred != nil {
		candidates = append([]*entities.Table{preferred}, tables...)
	}
	for _, t := range candidates {
		if t == nil {
			continue
		}
		if col, ok := resolveColumn(q, t); ok {
			if ct, _ := t.ColumnTypeOf(col); ct == entities.ColumnNumber {
				return col, t
			}
		}
	}
	if fallback != "" {
		for _, t := range candidates {
			if t != nil && t.HasColumn(fallback) {
				return resolvedName(t, fallback), t
			}
		}
	}
	return "", nil
}

// resolveColumn resolves a column reference out of the question words:
// exact match first, then longest-common-substring of length >= 3.
func resolveColumn(q string, table *entities.Table) (string, bool) {
	words := wordRe.FindAllString(q, -1)

	for _, c := range table.Columns {
		cl := strings.ToLower(c)
		for _, w := range words {
			if w == cl {
				return c, true
			}
		}
	}

	best, bestLen := "", 0
	for _, c := range table.Columns {
		cl := strings.ToLower(c)
		for _, w := range words {
			if len(w) < 3 || stopWords[w] {
				continue
			}
			if l := commonSubstringLen(w, cl); l >= 3 && l > bestLen {
				best, bestLen = c, l
			}
		}
	}
	if best != "" {
		return best, true
	}
	return "", false
}

func groupBySpec(q string, preferred *entities.Table, tables []*entities.Table) (string, string, *entities.Table) {
	idx := -1
	for _, marker := range []string{" by ", " per ", " each "} {
		if i := strings.Index(q, marker); i >= 0 {
			idx = i + len(marker)
			break
		}
	}
	if idx < 0 {
		return "", "", nil
	}
	groupRef := q[idx:]

	candidates := tables
	if preferred != nil {
		candidates = append([]*entities.Table{preferred}, tables...)
	}

	// A table where the value column resolves from the question wins over
	// one that would only serve a default column.
	for _, explicit := range []bool{true, false} {
		for _, t := range candidates {
			if t == nil {
				continue
			}
			groupCol, ok := resolveColumn(groupRef, t)
			if !ok {
				continue
			}
			if ct, _ := t.ColumnTypeOf(groupCol); ct == entities.ColumnNumber {
				continue // group keys are categorical
			}
			valueCol, okVal := resolveColumn(strings.TrimSuffix(q[:idx], " "), t)
			if !okVal && !explicit {
				for _, name := range []string{"value", "pnl", "quantity"} {
					if t.HasColumn(name) {
						valueCol, okVal = resolvedName(t, name), true
						break
					}
				}
			}
			if okVal {
				return groupCol, valueCol, t
			}
		}
	}
	return "", "", nil
}

func amountFilter(q string, table *entities.Table, column string) *entities.Predicate {
	if m := overAmtRe.FindStringSubmatch(q); m != nil {
		return &entities.Predicate{Column: column, Comparator: entities.CompareGt, Value: m[1]}
	}
	if m := underAmtRe.FindStringSubmatch(q); m != nil {
		return &entities.Predicate{Column: column, Comparator: entities.CompareLt, Value: m[1]}
	}
	return nil
}

func amountFilterAny(q string, table *entities.Table) *entities.Predicate {
	if !overAmtRe.MatchString(q) && !underAmtRe.MatchString(q) {
		return nil
	}
	column, t := resolveMetric(q, table, []*entities.Table{table}, "value")
	if t == nil {
		return nil
	}
	return amountFilter(q, table, column)
}

func symbolFilter(table *entities.Table, symbol string) *entities.Predicate {
	if !table.HasColumn("symbol") {
		return nil
	}
	return &entities.Predicate{
		Column:     resolvedName(table, "symbol"),
		Comparator: entities.CompareEq,
		Value:      symbol,
	}
}

// findSymbol extracts a ticker from the question: known symbols from the
// loaded tables first, then the for/in TICKER pattern.
func findSymbol(question string, tables []*entities.Table) string {
	known := knownSymbols(tables)
	for _, token := range strings.Fields(strings.ToUpper(question)) {
		token = strings.Trim(token, ".,?!()\"'")
		if known[token] {
			return token
		}
	}
	// The ticker pattern runs against the original casing: only a token
	// the user actually wrote in capitals reads as a ticker.
	if m := tickerRe.FindStringSubmatch(question); m != nil {
		return m[1]
	}
	return ""
}

func symbolFromHistory(history []entities.Turn, tables []*entities.Table) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != entities.RoleUser {
			continue
		}
		if s := findSymbol(history[i].Content, tables); s != "" {
			return s
		}
	}
	return ""
}

func knownSymbols(tables []*entities.Table) map[string]bool {
	known := make(map[string]bool)
	for _, t := range tables {
		if !t.HasColumn("symbol") {
			continue
		}
		for _, row := range t.Rows {
			if f, ok := row.Field("symbol"); ok {
				known[strings.ToUpper(strings.TrimSpace(f.Raw))] = true
			}
		}
	}
	return known
}

func tableByMention(q string, tables []*entities.Table) *entities.Table {
	switch {
	case strings.Contains(q, "trade") || strings.Contains(q, "transaction"):
		return tableByName(tables, "trades")
	case strings.Contains(q, "holding") || strings.Contains(q, "position") || strings.Contains(q, "portfolio"):
		return tableByName(tables, "holdings")
	}
	return nil
}

func tableFromHistory(history []entities.Turn, tables []*entities.Table) *entities.Table {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != entities.RoleUser {
			continue
		}
		if t := tableByMention(strings.ToLower(history[i].Content), tables); t != nil {
			return t
		}
	}
	return nil
}

func tableByName(tables []*entities.Table, keyword string) *entities.Table {
	for _, t := range tables {
		if strings.Contains(strings.ToLower(t.SourceFile), keyword) {
			return t
		}
	}
	return nil
}

// retrievalQuery enriches the raw question with session-inherited
// entities so follow-ups like "what about trades?" still retrieve the
// right rows.
func retrievalQuery(question, symbol string, table *entities.Table) string {
	query := question
	if symbol != "" && !strings.Contains(strings.ToUpper(question), symbol) {
		query += " " + symbol
	}
	if table != nil && !strings.Contains(strings.ToLower(question), strings.ToLower(table.SourceFile)) {
		query += " " + table.SourceFile
	}
	return query
}

func resolvedName(table *entities.Table, name string) string {
	for _, c := range table.Columns {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return name
}

// commonSubstringLen returns the length of the longest common substring.
func commonSubstringLen(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}
