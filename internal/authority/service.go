// Package authority implements §4.6's subject/creator normalization,
// subject-suggestion, and rule-based personal classification. Normalization
// rules are grounded on spec.md §4.6 (itself distilled from
// original_source/backend/app/modules/authority/service.py); persistence
// follows the teacher's internal/store CRUD-over-SQLite idiom via
// store.AuthorityStore.
package authority

import (
	"sort"
	"strings"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/config"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/store"
)

// Service normalizes subjects/creators/publishers and answers subject
// suggestions and rule-based classification requests. It is the single
// entry point callers (ingestion, the CLI) use for §4.6.
type Service struct {
	authority  *store.AuthorityStore
	synonyms   map[string]string
	classifier *Classifier
	cfg        config.AuthorityConfig
}

// NewService wires an authority store, the built-in (plus optional
// file-overridden) synonym table, and the rule-based classifier together.
func NewService(db *store.DB, cfg config.AuthorityConfig) (*Service, error) {
	synonyms, err := loadSynonymOverrides(cfg.SynonymsPath)
	if err != nil {
		return nil, err
	}
	return &Service{
		authority:  store.NewAuthorityStore(db),
		synonyms:   synonyms,
		classifier: NewClassifier(),
		cfg:        cfg,
	}, nil
}

// NormalizeSubject implements §4.6's NormalizeSubject(raw) -> canonical:
// clean the raw string, try the synonym table, then the authority store's
// stored canonicals/variants, and finally fall back to title-case. The
// resolved canonical is always persisted with raw as a variant.
func (s *Service) NormalizeSubject(raw string) (string, error) {
	cleaned := cleanSubject(raw)
	if cleaned == "" {
		return "", nil
	}

	if canonical, ok := s.synonyms[strings.ToLower(cleaned)]; ok {
		if err := s.authority.Persist(domain.AuthoritySubject, canonical, cleaned); err != nil {
			return "", err
		}
		return canonical, nil
	}

	if canonical, found, err := s.authority.Lookup(domain.AuthoritySubject, cleaned); err != nil {
		return "", err
	} else if found {
		if err := s.authority.Persist(domain.AuthoritySubject, canonical, cleaned); err != nil {
			return "", err
		}
		return canonical, nil
	}

	canonical := titleCaseSmallWords(cleaned)
	if err := s.authority.Persist(domain.AuthoritySubject, canonical, cleaned); err != nil {
		return "", err
	}
	return canonical, nil
}

// NormalizeCreator implements §4.6's NormalizeCreator/Publisher(raw), for
// the creator vocabulary.
func (s *Service) NormalizeCreator(raw string) (string, error) {
	return s.normalizeCreatorLike(domain.AuthorityCreator, raw)
}

// NormalizePublisher implements §4.6's NormalizeCreator/Publisher(raw), for
// the publisher vocabulary.
func (s *Service) NormalizePublisher(raw string) (string, error) {
	return s.normalizeCreatorLike(domain.AuthorityPublisher, raw)
}

func (s *Service) normalizeCreatorLike(category domain.AuthorityCategory, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	canonical := NormalizeCreatorPublisher(trimmed)
	if err := s.authority.Persist(category, canonical, trimmed); err != nil {
		return "", err
	}
	return canonical, nil
}

// suggestion pairs a candidate with the usage_count used to rank it, so
// built-in synonym targets (which have no stored usage_count) sort after
// any authority-store match with at least one real use.
type suggestion struct {
	text  string
	usage int
}

// SuggestSubjects implements §4.6's SuggestSubjects(prefix): up to
// cfg.MaxSuggestions results, the union of built-in synonym targets whose
// text contains prefix and authority-store canonicals whose text contains
// prefix, ordered by usage_count desc then text asc.
func (s *Service) SuggestSubjects(prefix string) ([]string, error) {
	limit := s.cfg.MaxSuggestions
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(prefix)

	seen := make(map[string]bool)
	var candidates []suggestion

	for _, target := range s.synonyms {
		if strings.Contains(strings.ToLower(target), needle) && !seen[strings.ToLower(target)] {
			seen[strings.ToLower(target)] = true
			candidates = append(candidates, suggestion{text: target, usage: 0})
		}
	}

	stored, err := s.authority.Suggest(domain.AuthoritySubject, prefix, limit*2)
	if err != nil {
		return nil, err
	}
	for _, sug := range stored {
		key := strings.ToLower(sug.Canonical)
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, suggestion{text: sug.Canonical, usage: sug.Usage})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].usage != candidates[j].usage {
			return candidates[i].usage > candidates[j].usage
		}
		return candidates[i].text < candidates[j].text
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.text
	}
	return out, nil
}

// ClassifyResource implements §4.6's rule-based personal classification,
// scoring title/tags/description against keyword tables.
func (s *Service) ClassifyResource(r *domain.Resource) string {
	return s.classifier.ClassifyResource(r)
}
