// compose.go assembles the grounding context, invokes generation once,
// and guarantees a non-empty answer even when the model is down.
package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/finrag/finrag-go/internal/domain/entities"
	"github.com/finrag/finrag-go/internal/domain/ports"
)

const answerMarker = "ANSWER:"

// Composer merges evidence with history, prompts the generation
// capability, and extracts the final answer with cited sources.
type Composer struct {
	llm        ports.LLMService
	maxHistory int
	timeout    time.Duration
}

// NewComposer creates a Composer with injected dependencies.
func NewComposer(llm ports.LLMService, maxHistory int, timeout time.Duration) *Composer {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Composer{llm: llm, maxHistory: maxHistory, timeout: timeout}
}

// Compose produces the answer text and the ordered, deduplicated source
// list. Aggregation sources precede retrieval sources. A generation
// failure degrades to a templated answer built from the aggregation
// result; with no evidence at all the caller still gets a clear
// "unable to answer", never an empty string.
func (c *Composer) Compose(ctx context.Context, question string, ev entities.Evidence, history []entities.Turn) (string, []entities.Source) {
	sources := collectSources(ev)

	prompt := c.buildPrompt(question, ev, history)

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := c.llm.Generate(genCtx, prompt)
	if err == nil {
		answer = cleanAnswer(answer)
	}
	if err != nil || answer == "" {
		return fallbackAnswer(ev), sources
	}
	return answer, sources
}

// buildPrompt creates the grounding prompt: rules, evidence context,
// truncated recent history, then the question.
func (c *Composer) buildPrompt(question string, ev entities.Evidence, history []entities.Turn) string {
	var sb strings.Builder
	sb.WriteString("You are a financial data assistant. Answer ONLY from the context below.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Use only information from the CONTEXT.\n")
	sb.WriteString("2. If the answer is not in the context, say you don't know based on the data.\n")
	sb.WriteString("3. Never invent or guess numbers.\n")
	sb.WriteString("4. Be concise and reference specific rows when possible.\n\n")

	sb.WriteString("CONTEXT:\n")
	if ev.Aggregation != nil {
		sb.WriteString(ev.Aggregation.Statement())
		sb.WriteString("\n")
	}
	for _, doc := range ev.Retrieved {
		sb.WriteString(doc.Document.Text)
		sb.WriteString("\n")
	}

	recent := history
	if len(recent) > c.maxHistory {
		recent = recent[len(recent)-c.maxHistory:]
	}
	if len(recent) > 0 {
		sb.WriteString("\nCHAT HISTORY:\n")
		for _, turn := range recent {
			sb.WriteString(strings.ToUpper(turn.Role))
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nQUESTION: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	sb.WriteString(answerMarker)
	return sb.String()
}

// cleanAnswer strips whitespace and prompt echoes from raw model output.
func cleanAnswer(raw string) string {
	if i := strings.LastIndex(raw, answerMarker); i >= 0 {
		raw = raw[i+len(answerMarker):]
	}
	return strings.TrimSpace(raw)
}

// fallbackAnswer is the templated degradation path when generation is
// unavailable or returned nothing.
func fallbackAnswer(ev entities.Evidence) string {
	if ev.Aggregation != nil {
		return ev.Aggregation.Statement()
	}
	if len(ev.Retrieved) > 0 {
		var sb strings.Builder
		sb.WriteString("I couldn't generate a full answer right now, but these records look relevant:\n")
		for _, doc := range ev.Retrieved {
			sb.WriteString(doc.Document.Text)
			sb.WriteString("\n")
		}
		return strings.TrimSpace(sb.String())
	}
	return "I'm unable to answer this question from the loaded data right now."
}

// collectSources orders citations: aggregation rows first, then
// retrieved documents, deduplicated by (file, row index) keeping
// first-seen order.
func collectSources(ev entities.Evidence) []entities.Source {
	var out []entities.Source
	seen := make(map[string]bool)
	add := func(s entities.Source) {
		key := fmt.Sprintf("%s#%d", s.File, s.RowIndex)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}
	if ev.Aggregation != nil {
		for _, row := range ev.Aggregation.Rows {
			add(row.Source())
		}
	}
	for _, doc := range ev.Retrieved {
		add(doc.Document.Source)
	}
	return out
}
