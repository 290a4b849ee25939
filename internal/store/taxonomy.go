package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/ram-tewari/neo-alexandria-sub002/internal/errors"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// TaxonomyStore persists domain.TaxonomyNode records as a materialized-path
// tree (§4.6): path is a '/'-joined chain of ancestor slugs, level is the
// path's depth, and move/delete operations rewrite every descendant's path
// and level in one transaction.
type TaxonomyStore struct {
	db *DB
}

// NewTaxonomyStore wraps an open DB for taxonomy persistence.
func NewTaxonomyStore(db *DB) *TaxonomyStore {
	return &TaxonomyStore{db: db}
}

const nodeColumns = `id, name, slug, COALESCE(parent_id,''), level, path, keywords, description,
	allow_resources, resource_count, descendant_resource_count,
	(SELECT COUNT(*) = 0 FROM taxonomy_nodes c WHERE c.parent_id = taxonomy_nodes.id)`

// Create inserts a node under parentID (empty for a root node), deriving
// its level and materialized path from the parent.
func (s *TaxonomyStore) Create(n *domain.TaxonomyNode) error {
	var parentPath string
	var parentLevel int
	if n.ParentID != "" {
		row := s.db.Conn().QueryRow(`SELECT path, level FROM taxonomy_nodes WHERE id = ?`, n.ParentID)
		if err := row.Scan(&parentPath, &parentLevel); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound(apperrors.CodeNodeNotFound, fmt.Sprintf("parent node %s not found", n.ParentID))
			}
			return apperrors.Internal("taxonomy parent lookup failed", err)
		}
	}
	n.Level = parentLevel
	if n.ParentID != "" {
		n.Level = parentLevel + 1
		n.Path = parentPath + "/" + n.Slug
	} else {
		n.Path = n.Slug
	}

	keywordsJSON, err := json.Marshal(n.Keywords)
	if err != nil {
		return apperrors.Internal("marshal keywords", err)
	}
	_, err = s.db.Conn().Exec(`
		INSERT INTO taxonomy_nodes (id, name, slug, parent_id, level, path, keywords, description, allow_resources)
		VALUES (?,?,?,NULLIF(?,''),?,?,?,?,?)`,
		n.ID, n.Name, n.Slug, n.ParentID, n.Level, n.Path, string(keywordsJSON), n.Description, boolToInt(n.AllowResources))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(apperrors.CodeSlugConflict, fmt.Sprintf("sibling slug %q already exists under this parent", n.Slug))
		}
		return apperrors.Internal("taxonomy insert failed", err)
	}
	return nil
}

// Get loads a node by ID.
func (s *TaxonomyStore) Get(id string) (*domain.TaxonomyNode, error) {
	row := s.db.Conn().QueryRow(`SELECT `+nodeColumns+` FROM taxonomy_nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(apperrors.CodeNodeNotFound, fmt.Sprintf("taxonomy node %s not found", id))
	}
	if err != nil {
		return nil, apperrors.Internal("taxonomy scan failed", err)
	}
	return n, nil
}

// Children returns the direct children of id (or roots, if id is empty),
// ordered by name.
func (s *TaxonomyStore) Children(id string) ([]*domain.TaxonomyNode, error) {
	var rows *sql.Rows
	var err error
	if id == "" {
		rows, err = s.db.Conn().Query(`SELECT ` + nodeColumns + ` FROM taxonomy_nodes WHERE parent_id IS NULL ORDER BY name`)
	} else {
		rows, err = s.db.Conn().Query(`SELECT `+nodeColumns+` FROM taxonomy_nodes WHERE parent_id = ? ORDER BY name`, id)
	}
	if err != nil {
		return nil, apperrors.Internal("taxonomy children query failed", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// Descendants returns every node whose path is prefixed by the given
// node's path (excluding the node itself) -- a single O(subtree) query.
func (s *TaxonomyStore) Descendants(id string) ([]*domain.TaxonomyNode, error) {
	node, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Conn().Query(`SELECT `+nodeColumns+` FROM taxonomy_nodes WHERE path LIKE ? AND id != ? ORDER BY path`, node.Path+"/%", id)
	if err != nil {
		return nil, apperrors.Internal("taxonomy descendants query failed", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// Ancestors returns id's chain of ancestors, root first, by walking
// parent_id one hop at a time -- O(depth), per §4.6.
func (s *TaxonomyStore) Ancestors(id string) ([]*domain.TaxonomyNode, error) {
	node, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	var chain []*domain.TaxonomyNode
	for node.ParentID != "" {
		parent, err := s.Get(node.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append([]*domain.TaxonomyNode{parent}, chain...)
		node = parent
	}
	return chain, nil
}

// Move reparents id under newParentID (empty for root), rewriting its own
// and every descendant's path/level. Returns Conflict if the move would
// create a cycle (newParentID is id itself or one of its descendants).
func (s *TaxonomyStore) Move(id, newParentID string) error {
	if id == newParentID {
		return apperrors.Conflict(apperrors.CodeMoveWouldCycle, "cannot move a node under itself")
	}
	node, err := s.Get(id)
	if err != nil {
		return err
	}

	var newParentPath string
	var newParentLevel int
	if newParentID != "" {
		newParent, err := s.Get(newParentID)
		if err != nil {
			return err
		}
		if newParent.Path == node.Path || strings.HasPrefix(newParent.Path, node.Path+"/") {
			return apperrors.Conflict(apperrors.CodeMoveWouldCycle, "cannot move a node under its own descendant")
		}
		newParentPath, newParentLevel = newParent.Path, newParent.Level
	}

	descendants, err := s.Descendants(id)
	if err != nil {
		return err
	}

	tx, err := s.db.Conn().Begin()
	if err != nil {
		return apperrors.Internal("taxonomy move tx begin failed", err)
	}
	defer tx.Rollback()

	newPath := node.Slug
	newLevel := 0
	if newParentID != "" {
		newPath = newParentPath + "/" + node.Slug
		newLevel = newParentLevel + 1
	}
	var parentArg any
	if newParentID != "" {
		parentArg = newParentID
	}
	if _, err := tx.Exec(`UPDATE taxonomy_nodes SET parent_id=?, path=?, level=? WHERE id=?`,
		parentArg, newPath, newLevel, id); err != nil {
		return apperrors.Internal("taxonomy move update failed", err)
	}

	levelDelta := newLevel - node.Level
	oldPrefix := node.Path
	for _, d := range descendants {
		rewritten := newPath + strings.TrimPrefix(d.Path, oldPrefix)
		if _, err := tx.Exec(`UPDATE taxonomy_nodes SET path=?, level=? WHERE id=?`,
			rewritten, d.Level+levelDelta, d.ID); err != nil {
			return apperrors.Internal("taxonomy descendant rewrite failed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("taxonomy move commit failed", err)
	}
	return s.recomputeDescendantCounts(nil)
}

// Delete removes node per §4.6. With cascade=false, it fails (Conflict) if
// the node has any directly assigned resources; otherwise its children are
// reparented to node's own parent and the node is dropped. With
// cascade=true, node, every descendant, and every ResourceTaxonomy
// assignment under the subtree are deleted unconditionally.
func (s *TaxonomyStore) Delete(id string, cascade bool) error {
	node, err := s.Get(id)
	if err != nil {
		return err
	}

	tx, err := s.db.Conn().Begin()
	if err != nil {
		return apperrors.Internal("taxonomy delete tx begin failed", err)
	}
	defer tx.Rollback()

	if cascade {
		if _, err := tx.Exec(`DELETE FROM taxonomy_nodes WHERE id = ? OR path LIKE ?`, id, node.Path+"/%"); err != nil {
			return apperrors.Internal("taxonomy cascade delete failed", err)
		}
		if err := tx.Commit(); err != nil {
			return apperrors.Internal("taxonomy delete commit failed", err)
		}
		return s.recomputeDescendantCounts(nil)
	}

	var assigned int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM resource_taxonomy WHERE taxonomy_node_id = ?`, id).Scan(&assigned); err != nil {
		return apperrors.Internal("taxonomy assignment count failed", err)
	}
	if assigned > 0 {
		return apperrors.Conflict(apperrors.CodeNodeNotEmpty, fmt.Sprintf("node %s has %d assigned resources", id, assigned))
	}

	var parentArg any
	if node.ParentID != "" {
		parentArg = node.ParentID
	}
	if _, err := tx.Exec(`UPDATE taxonomy_nodes SET parent_id=? WHERE parent_id=?`, parentArg, id); err != nil {
		return apperrors.Internal("taxonomy reparent failed", err)
	}

	children, err := childrenTx(tx, id)
	if err != nil {
		return err
	}
	if err := reparentChildPaths(tx, node, children); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM taxonomy_nodes WHERE id = ?`, id); err != nil {
		return apperrors.Internal("taxonomy delete failed", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("taxonomy delete commit failed", err)
	}
	return s.recomputeDescendantCounts(nil)
}

// AssignResource records (or updates, on conflict) a ResourceTaxonomy
// assignment and maintains resource_count/descendant_resource_count per
// §4.6's "on any assignment change" invariant.
func (s *TaxonomyStore) AssignResource(rt *domain.ResourceTaxonomy) error {
	rt.ApplyReviewInvariant()
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return apperrors.Internal("taxonomy assign tx begin failed", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO resource_taxonomy (resource_id, taxonomy_node_id, confidence, is_predicted, predicted_by, needs_review, review_priority)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(resource_id, taxonomy_node_id) DO UPDATE SET
			confidence=excluded.confidence, is_predicted=excluded.is_predicted,
			predicted_by=excluded.predicted_by, needs_review=excluded.needs_review,
			review_priority=excluded.review_priority`,
		rt.ResourceID, rt.TaxonomyNodeID, rt.Confidence, boolToInt(rt.IsPredicted), rt.PredictedBy,
		boolToInt(rt.NeedsReview), rt.ReviewPriority); err != nil {
		return apperrors.Internal("taxonomy assignment insert failed", err)
	}
	if err := recomputeResourceCount(tx, rt.TaxonomyNodeID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("taxonomy assign commit failed", err)
	}
	return s.recomputeDescendantCounts(nil)
}

// UnassignResource removes a ResourceTaxonomy assignment and updates counts.
func (s *TaxonomyStore) UnassignResource(resourceID, nodeID string) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return apperrors.Internal("taxonomy unassign tx begin failed", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM resource_taxonomy WHERE resource_id = ? AND taxonomy_node_id = ?`, resourceID, nodeID); err != nil {
		return apperrors.Internal("taxonomy unassign failed", err)
	}
	if err := recomputeResourceCount(tx, nodeID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("taxonomy unassign commit failed", err)
	}
	return s.recomputeDescendantCounts(nil)
}

func recomputeResourceCount(tx *sql.Tx, nodeID string) error {
	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM resource_taxonomy WHERE taxonomy_node_id = ?`, nodeID).Scan(&count); err != nil {
		return apperrors.Internal("taxonomy resource count failed", err)
	}
	if _, err := tx.Exec(`UPDATE taxonomy_nodes SET resource_count = ? WHERE id = ?`, count, nodeID); err != nil {
		return apperrors.Internal("taxonomy resource count update failed", err)
	}
	return nil
}

// recomputeDescendantCounts recomputes descendant_resource_count for every
// node as the sum of resource_count over its subtree. It runs outside the
// triggering transaction since it touches the whole tree; tx is accepted
// for future use by callers that want it folded into a larger transaction
// but is currently always nil (a fresh connection-level statement).
func (s *TaxonomyStore) recomputeDescendantCounts(_ *sql.Tx) error {
	rows, err := s.db.Conn().Query(`SELECT id, path FROM taxonomy_nodes`)
	if err != nil {
		return apperrors.Internal("taxonomy tree scan failed", err)
	}
	type idPath struct{ id, path string }
	var all []idPath
	for rows.Next() {
		var p idPath
		if err := rows.Scan(&p.id, &p.path); err != nil {
			rows.Close()
			return apperrors.Internal("taxonomy tree scan failed", err)
		}
		all = append(all, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperrors.Internal("taxonomy tree scan failed", err)
	}

	for _, p := range all {
		var total int
		if err := s.db.Conn().QueryRow(`
			SELECT COALESCE(SUM(resource_count), 0) FROM taxonomy_nodes WHERE path LIKE ?`, p.path+"/%").Scan(&total); err != nil {
			return apperrors.Internal("taxonomy descendant count failed", err)
		}
		if _, err := s.db.Conn().Exec(`UPDATE taxonomy_nodes SET descendant_resource_count = ? WHERE id = ?`, total, p.id); err != nil {
			return apperrors.Internal("taxonomy descendant count update failed", err)
		}
	}
	return nil
}

// childrenTx loads a node's direct children within an open transaction.
func childrenTx(tx *sql.Tx, parentID string) ([]*domain.TaxonomyNode, error) {
	rows, err := tx.Query(`SELECT `+nodeColumns+` FROM taxonomy_nodes WHERE parent_id = ? ORDER BY name`, parentID)
	if err != nil {
		return nil, apperrors.Internal("taxonomy children query failed", err)
	}
	defer rows.Close()
	var out []*domain.TaxonomyNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, apperrors.Internal("taxonomy row scan failed", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// reparentChildPaths rewrites each child's (and its descendants') path/level
// to sit directly under the deleted node's own parent, one level shallower.
func reparentChildPaths(tx *sql.Tx, deleted *domain.TaxonomyNode, children []*domain.TaxonomyNode) error {
	grandparentPath := strings.TrimSuffix(deleted.Path, "/"+deleted.Slug)
	for _, child := range children {
		newChildPath := child.Slug
		if grandparentPath != "" && grandparentPath != deleted.Path {
			newChildPath = grandparentPath + "/" + child.Slug
		}
		newChildLevel := deleted.Level
		if _, err := tx.Exec(`UPDATE taxonomy_nodes SET path=?, level=? WHERE id=?`, newChildPath, newChildLevel, child.ID); err != nil {
			return apperrors.Internal("taxonomy child path rewrite failed", err)
		}
		rows, err := tx.Query(`
			SELECT `+nodeColumns+`
			FROM taxonomy_nodes WHERE path LIKE ? AND id != ?`, child.Path+"/%", child.ID)
		if err != nil {
			return apperrors.Internal("taxonomy descendant query failed", err)
		}
		var descendants []*domain.TaxonomyNode
		for rows.Next() {
			d, err := scanNode(rows)
			if err != nil {
				rows.Close()
				return apperrors.Internal("taxonomy row scan failed", err)
			}
			descendants = append(descendants, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return apperrors.Internal("taxonomy descendant query failed", err)
		}
		levelDelta := newChildLevel - child.Level
		oldPrefix := child.Path
		for _, d := range descendants {
			rewritten := newChildPath + strings.TrimPrefix(d.Path, oldPrefix)
			if _, err := tx.Exec(`UPDATE taxonomy_nodes SET path=?, level=? WHERE id=?`, rewritten, d.Level+levelDelta, d.ID); err != nil {
				return apperrors.Internal("taxonomy descendant rewrite failed", err)
			}
		}
	}
	return nil
}

func scanNode(row rowScanner) (*domain.TaxonomyNode, error) {
	var n domain.TaxonomyNode
	var keywordsJSON string
	var allowResources, isLeaf int
	err := row.Scan(&n.ID, &n.Name, &n.Slug, &n.ParentID, &n.Level, &n.Path, &keywordsJSON, &n.Description,
		&allowResources, &n.ResourceCount, &n.DescendantResourceCount, &isLeaf)
	if err != nil {
		return nil, err
	}
	n.AllowResources = allowResources != 0
	n.IsLeaf = isLeaf != 0
	if err := json.Unmarshal([]byte(keywordsJSON), &n.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*domain.TaxonomyNode, error) {
	var out []*domain.TaxonomyNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, apperrors.Internal("taxonomy row scan failed", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
