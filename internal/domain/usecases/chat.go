// chat.go orchestrates one conversational turn: session lookup, routing,
// evidence gathering with graceful degradation, composition, and history
// append. Reload swaps the whole corpus atomically so concurrent chats
// never see a half-built state.
package usecases

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/finrag/finrag-go/internal/domain/entities"
	"github.com/finrag/finrag-go/internal/domain/ports"
)

// Request bounds mirroring the transport contract.
const (
	MinTopK       = 1
	MaxTopK       = 20
	MaxMessageLen = 2000
)

// corpus is one immutable snapshot of loaded tables and their documents.
type corpus struct {
	tables []*entities.Table
	docs   []entities.Document
}

// ChatUseCase is the request-facing core pipeline.
type ChatUseCase struct {
	source      ports.TableSource
	index       ports.VectorIndex
	sessions    ports.SessionStore
	composer    *Composer
	logger      *logrus.Logger
	defaultTopK int

	snapshot atomic.Pointer[corpus]
}

// NewChatUseCase creates the pipeline with injected dependencies.
func NewChatUseCase(
	source ports.TableSource,
	index ports.VectorIndex,
	sessions ports.SessionStore,
	composer *Composer,
	logger *logrus.Logger,
	defaultTopK int,
) *ChatUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ChatUseCase{
		source:      source,
		index:       index,
		sessions:    sessions,
		composer:    composer,
		logger:      logger,
		defaultTopK: defaultTopK,
	}
}

// Reload loads the tables, rebuilds documents and the vector index, and
// swaps the snapshot in. On failure the previous snapshot keeps serving.
func (uc *ChatUseCase) Reload(ctx context.Context) error {
	tables, err := uc.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataLoad, err)
	}
	docs := BuildDocuments(tables)
	if err := uc.index.Rebuild(ctx, docs); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	uc.snapshot.Store(&corpus{tables: tables, docs: docs})

	rowTotal := 0
	for _, t := range tables {
		rowTotal += len(t.Rows)
	}
	uc.logger.WithFields(logrus.Fields{
		"tables":    len(tables),
		"rows":      rowTotal,
		"documents": len(docs),
	}).Info("corpus reloaded")
	return nil
}

// Tables returns the currently served tables.
func (uc *ChatUseCase) Tables() []*entities.Table {
	if c := uc.snapshot.Load(); c != nil {
		return c.tables
	}
	return nil
}

// Chat answers one question in a session. Evidence-path failures degrade
// locally; the caller always receives a well-formed answer.
func (uc *ChatUseCase) Chat(ctx context.Context, req entities.ChatRequest) (*entities.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}
	if len(message) > MaxMessageLen {
		return nil, fmt.Errorf("message exceeds %d characters", MaxMessageLen)
	}
	snap := uc.snapshot.Load()
	if snap == nil {
		return nil, ErrNoData
	}

	topK := req.TopK
	if topK <= 0 {
		topK = uc.defaultTopK
	}
	if topK < MinTopK {
		topK = MinTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	sessionID, _ := uc.sessions.GetOrCreate(req.SessionID)
	history := uc.sessions.History(sessionID)

	plan := Route(message, history, snap.tables)
	evidence := uc.gather(ctx, plan, snap, topK)

	answer, sources := uc.composer.Compose(ctx, message, evidence, history)

	uc.sessions.Append(sessionID, entities.Turn{Role: entities.RoleUser, Content: message})
	uc.sessions.Append(sessionID, entities.Turn{Role: entities.RoleAssistant, Content: answer, Sources: sources})

	return &entities.ChatResponse{SessionID: sessionID, Answer: answer, Sources: sources}, nil
}

// gather executes the plan's evidence paths. An aggregation error means
// "no aggregation evidence"; an embedding failure degrades retrieval to
// keyword-overlap ranking over the document texts.
func (uc *ChatUseCase) gather(ctx context.Context, plan entities.EvidencePlan, snap *corpus, topK int) entities.Evidence {
	var ev entities.Evidence

	if plan.Kind == entities.PlanAggregation || plan.Kind == entities.PlanHybrid {
		table := findTableByFile(snap.tables, plan.Aggregation.Table)
		result, err := Aggregate(table, *plan.Aggregation)
		if err != nil {
			uc.logger.WithError(err).Warn("aggregation produced no evidence")
		} else {
			ev.Aggregation = result
		}
	}

	if plan.Kind == entities.PlanRetrieval || plan.Kind == entities.PlanHybrid || ev.Aggregation == nil {
		hits, err := uc.index.Search(ctx, plan.Query, topK)
		if err != nil {
			uc.logger.WithError(err).Warn("retrieval unavailable, using keyword fallback")
			hits = keywordSearch(snap.docs, plan.Query, topK)
		}
		ev.Retrieved = hits
	}

	return ev
}

func findTableByFile(tables []*entities.Table, file string) *entities.Table {
	for _, t := range tables {
		if t.SourceFile == file {
			return t
		}
	}
	return nil
}

var tokenRe = regexp.MustCompile(`\p{L}+|\d+(?:\.\d+)?`)

// keywordSearch ranks documents by Ochiai token-set overlap with the
// query. It is the degraded path when the embedding capability fails.
func keywordSearch(docs []entities.Document, query string, topK int) []entities.ScoredDocument {
	qset := tokenSet(query)
	if len(qset) == 0 || topK <= 0 {
		return nil
	}

	scored := make([]entities.ScoredDocument, 0, len(docs))
	for _, doc := range docs {
		dset := tokenSet(doc.Text)
		inter := 0
		for t := range dset {
			if qset[t] {
				inter++
			}
		}
		score := 0.0
		if inter > 0 {
			score = float64(inter) / (math.Sqrt(float64(len(qset))) * math.Sqrt(float64(len(dset))))
		}
		scored = append(scored, entities.ScoredDocument{Document: doc, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Document.Source.RowIndex != scored[j].Document.Source.RowIndex {
			return scored[i].Document.Source.RowIndex < scored[j].Document.Source.RowIndex
		}
		return scored[i].Document.Source.File < scored[j].Document.Source.File
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

func tokenSet(s string) map[string]bool {
	tokens := tokenRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
