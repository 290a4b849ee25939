package store

import (
	"regexp"
	"strings"

	apperrors "github.com/ram-tewari/neo-alexandria-sub002/internal/errors"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/search"
)

// LexicalIndex runs the lexical retrieval leg (§4.1) against the FTS5
// shadow table kept current by the resources table's triggers. Query
// translation is grounded on the teacher's query-string parsing in
// internal/store/bm25.go, adapted to SQLite FTS5's MATCH grammar instead
// of the teacher's original query DSL.
type LexicalIndex struct {
	db *DB
}

// NewLexicalIndex wraps an open DB for lexical search.
func NewLexicalIndex(db *DB) *LexicalIndex {
	return &LexicalIndex{db: db}
}

// Search runs query against the FTS5 index and returns up to limit doc ids
// in BM25-rank order (best first), implementing §4.1's AND/OR/NOT,
// quoted-phrase, field:term, and prefix* grammar by translating directly to
// FTS5 MATCH syntax (a near-superset of the required grammar).
func (idx *LexicalIndex) Search(query string, limit int) (search.RankedList, error) {
	ftsQuery := toFTS5Query(query)
	if ftsQuery == "" {
		return nil, nil
	}
	rows, err := idx.db.Conn().Query(`
		SELECT id FROM resources_fts
		WHERE resources_fts MATCH ?
		ORDER BY bm25(resources_fts)
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, apperrors.Unavailable(apperrors.CodeIndexFailed, "lexical index query failed", err)
	}
	defer rows.Close()

	var out search.RankedList
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Internal("lexical row scan failed", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

var fieldPrefixPattern = regexp.MustCompile(`(?i)^(title|description|creator|subject):`)

// toFTS5Query passes quoted phrases, NOT/- exclusions, field:term
// restriction, and trailing prefix* wildcards straight through to FTS5
// (which natively supports all of them); bare terms are implicitly ANDed,
// matching §4.1's default conjunctive grammar, and bare "OR"/"AND" tokens
// are upper-cased so lowercase user input still triggers FTS5's boolean
// operators.
func toFTS5Query(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	fields := strings.Fields(q)
	for i, f := range fields {
		switch strings.ToLower(f) {
		case "or":
			fields[i] = "OR"
		case "and":
			fields[i] = "AND"
		case "not":
			fields[i] = "NOT"
		}
	}
	return strings.Join(fields, " ")
}
