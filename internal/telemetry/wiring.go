package telemetry

import (
	"time"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// RecordSearch converts one Engine.Search call into a QueryEvent, classifying
// QueryType by which fusion weight dominated (§4.2 adaptive weighting) so
// the zero-result and repetition analyses in QueryMetricsSnapshot can be
// broken down by retrieval strategy.
func RecordSearch(m *QueryMetrics, q domain.Query, res *domain.SearchResults) {
	m.Record(QueryEvent{
		Query:       q.Text,
		QueryType:   classify(res.WeightsUsed),
		ResultCount: len(res.Items),
		Latency:     time.Duration(res.LatencyMS * float64(time.Millisecond)),
		Timestamp:   time.Now(),
	})
}

func classify(w domain.Weights) QueryType {
	switch {
	case w.Lexical >= w.Dense && w.Lexical >= w.Sparse:
		return QueryTypeLexical
	case w.Dense >= w.Lexical && w.Dense >= w.Sparse:
		return QueryTypeSemantic
	default:
		return QueryTypeMixed
	}
}
