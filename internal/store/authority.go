package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	apperrors "github.com/ram-tewari/neo-alexandria-sub002/internal/errors"

	"github.com/google/uuid"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// AuthorityStore persists the canonical/variant vocabulary NormalizeSubject
// and NormalizeCreatorPublisher fall back to once the built-in synonym
// table misses (§4.6).
type AuthorityStore struct {
	db *DB
}

// NewAuthorityStore wraps an open DB for authority-vocabulary persistence.
func NewAuthorityStore(db *DB) *AuthorityStore {
	return &AuthorityStore{db: db}
}

// Lookup finds a stored canonical for raw within category, matching either
// the canonical itself or any recorded variant, case-insensitively.
func (s *AuthorityStore) Lookup(category domain.AuthorityCategory, raw string) (string, bool, error) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	rows, err := s.db.Conn().Query(`
		SELECT canonical, variants FROM authority_entries WHERE category = ?`, string(category))
	if err != nil {
		return "", false, apperrors.Internal("authority lookup failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var canonical, variantsJSON string
		if err := rows.Scan(&canonical, &variantsJSON); err != nil {
			return "", false, apperrors.Internal("authority scan failed", err)
		}
		if strings.ToLower(canonical) == needle {
			return canonical, true, nil
		}
		var variants []string
		if err := json.Unmarshal([]byte(variantsJSON), &variants); err != nil {
			return "", false, apperrors.Internal("authority variants unmarshal failed", err)
		}
		for _, v := range variants {
			if strings.ToLower(v) == needle {
				return canonical, true, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return "", false, apperrors.Internal("authority lookup failed", err)
	}
	return "", false, nil
}

// Persist records canonical as the authority for category, adding raw as a
// variant (if it differs from canonical) and incrementing usage_count by
// one -- callers are responsible for calling this at most once per unique
// resource tag, per §4.6's "increment usage_count once per unique resource
// tag" invariant.
func (s *AuthorityStore) Persist(category domain.AuthorityCategory, canonical, raw string) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return apperrors.Internal("authority persist tx begin failed", err)
	}
	defer tx.Rollback()

	var id, variantsJSON string
	err = tx.QueryRow(`SELECT id, variants FROM authority_entries WHERE category = ? AND canonical = ?`,
		string(category), canonical).Scan(&id, &variantsJSON)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		variants := []string{}
		if !strings.EqualFold(raw, canonical) && strings.TrimSpace(raw) != "" {
			variants = append(variants, raw)
		}
		vj, merr := json.Marshal(variants)
		if merr != nil {
			return apperrors.Internal("authority variants marshal failed", merr)
		}
		if _, err := tx.Exec(`
			INSERT INTO authority_entries (id, category, canonical, variants, usage_count)
			VALUES (?,?,?,?,1)`, uuid.NewString(), string(category), canonical, string(vj)); err != nil {
			return apperrors.Internal("authority insert failed", err)
		}
	case err != nil:
		return apperrors.Internal("authority persist lookup failed", err)
	default:
		var variants []string
		if err := json.Unmarshal([]byte(variantsJSON), &variants); err != nil {
			return apperrors.Internal("authority variants unmarshal failed", err)
		}
		if !strings.EqualFold(raw, canonical) && strings.TrimSpace(raw) != "" && !containsFold(variants, raw) {
			variants = append(variants, raw)
		}
		vj, merr := json.Marshal(variants)
		if merr != nil {
			return apperrors.Internal("authority variants marshal failed", merr)
		}
		if _, err := tx.Exec(`
			UPDATE authority_entries SET variants = ?, usage_count = usage_count + 1 WHERE id = ?`,
			string(vj), id); err != nil {
			return apperrors.Internal("authority update failed", err)
		}
	}
	return tx.Commit()
}

// Suggestion is one authority-store candidate returned by Suggest, paired
// with its usage_count for ranking against built-in synonym targets.
type Suggestion struct {
	Canonical string
	Usage     int
}

// Suggest returns up to limit stored canonicals within category whose text
// contains prefix (case-insensitive), ordered by usage_count desc then
// canonical asc -- the authority-store half of §4.6's SuggestSubjects.
func (s *AuthorityStore) Suggest(category domain.AuthorityCategory, prefix string, limit int) ([]Suggestion, error) {
	rows, err := s.db.Conn().Query(`
		SELECT canonical, usage_count FROM authority_entries
		WHERE category = ? AND canonical LIKE ? COLLATE NOCASE
		ORDER BY usage_count DESC, canonical ASC
		LIMIT ?`, string(category), "%"+prefix+"%", limit)
	if err != nil {
		return nil, apperrors.Internal("authority suggest failed", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sug Suggestion
		if err := rows.Scan(&sug.Canonical, &sug.Usage); err != nil {
			return nil, apperrors.Internal("authority suggest scan failed", err)
		}
		out = append(out, sug)
	}
	return out, rows.Err()
}

func containsFold(items []string, needle string) bool {
	for _, it := range items {
		if strings.EqualFold(it, needle) {
			return true
		}
	}
	return false
}
