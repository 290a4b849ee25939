package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/ram-tewari/neo-alexandria-sub002/internal/errors"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// ResourceStore persists domain.Resource records and keeps the FTS5 shadow
// table in sync via the triggers in the schema.
type ResourceStore struct {
	db *DB
}

// NewResourceStore wraps an open DB for resource persistence.
func NewResourceStore(db *DB) *ResourceStore {
	return &ResourceStore{db: db}
}

// Create inserts a new resource. Returns a Conflict error if the ID already
// exists.
func (s *ResourceStore) Create(r *domain.Resource) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return s.upsert(r, true)
}

// Update overwrites an existing resource. Returns a NotFound error if it
// does not exist.
func (s *ResourceStore) Update(r *domain.Resource) error {
	r.UpdatedAt = time.Now().UTC()
	return s.upsert(r, false)
}

func (s *ResourceStore) upsert(r *domain.Resource, insert bool) error {
	subjectJSON, err := json.Marshal(r.Subject)
	if err != nil {
		return apperrors.Internal("marshal subject", err)
	}
	qualityJSON, err := json.Marshal(r.Quality)
	if err != nil {
		return apperrors.Internal("marshal quality dimensions", err)
	}
	weightsJSON, err := json.Marshal(r.QualityWeights)
	if err != nil {
		return apperrors.Internal("marshal quality weights", err)
	}
	var sparseJSON []byte
	if r.SparseEmbedding != nil {
		sparseJSON, err = json.Marshal(r.SparseEmbedding)
		if err != nil {
			return apperrors.Internal("marshal sparse embedding", err)
		}
	}
	embBlob := encodeFloat32Vector(r.Embedding)

	if insert {
		_, err = s.db.Conn().Exec(`
			INSERT INTO resources (
				id, title, description, subject, creator, publisher, language, type,
				classification_code, read_status, quality_overall, quality_dimensions,
				quality_weights, embedding, sparse_embedding, sparse_embedding_model,
				sparse_embedding_updated_at, ingestion_status, ingestion_error,
				created_at, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.ID, r.Title, r.Description, string(subjectJSON), r.Creator, r.Publisher,
			r.Language, r.Type, r.ClassificationCode, string(r.ReadStatus), r.QualityOverall,
			string(qualityJSON), string(weightsJSON), embBlob, nullableString(sparseJSON),
			r.SparseEmbeddingModel, r.SparseEmbeddingUpdatedAt, string(r.IngestionStatus),
			r.IngestionError, r.CreatedAt, r.UpdatedAt)
		if err != nil && isUniqueViolation(err) {
			return apperrors.Conflict(apperrors.CodeSlugConflict, fmt.Sprintf("resource %s already exists", r.ID))
		}
	} else {
		var res sql.Result
		res, err = s.db.Conn().Exec(`
			UPDATE resources SET
				title=?, description=?, subject=?, creator=?, publisher=?, language=?, type=?,
				classification_code=?, read_status=?, quality_overall=?, quality_dimensions=?,
				quality_weights=?, embedding=?, sparse_embedding=?, sparse_embedding_model=?,
				sparse_embedding_updated_at=?, ingestion_status=?, ingestion_error=?, updated_at=?
			WHERE id=?`,
			r.Title, r.Description, string(subjectJSON), r.Creator, r.Publisher, r.Language,
			r.Type, r.ClassificationCode, string(r.ReadStatus), r.QualityOverall, string(qualityJSON),
			string(weightsJSON), embBlob, nullableString(sparseJSON), r.SparseEmbeddingModel,
			r.SparseEmbeddingUpdatedAt, string(r.IngestionStatus), r.IngestionError, r.UpdatedAt, r.ID)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return apperrors.NotFound(apperrors.CodeResourceNotFound, fmt.Sprintf("resource %s not found", r.ID))
			}
		}
	}
	if err != nil {
		return apperrors.Internal("resource upsert failed", err)
	}
	return nil
}

// Get loads a resource by ID.
func (s *ResourceStore) Get(id string) (*domain.Resource, error) {
	row := s.db.Conn().QueryRow(`
		SELECT id, title, description, subject, creator, publisher, language, type,
			classification_code, read_status, quality_overall, quality_dimensions,
			quality_weights, embedding, sparse_embedding, sparse_embedding_model,
			sparse_embedding_updated_at, ingestion_status, ingestion_error,
			created_at, updated_at
		FROM resources WHERE id = ?`, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(apperrors.CodeResourceNotFound, fmt.Sprintf("resource %s not found", id))
	}
	if err != nil {
		return nil, apperrors.Internal("resource scan failed", err)
	}
	return r, nil
}

// List loads every resource, for use by callers that build in-memory
// indices (the dense/sparse retrieval legs, batch re-embedding) at startup.
func (s *ResourceStore) List() ([]*domain.Resource, error) {
	rows, err := s.db.Conn().Query(`
		SELECT id, title, description, subject, creator, publisher, language, type,
			classification_code, read_status, quality_overall, quality_dimensions,
			quality_weights, embedding, sparse_embedding, sparse_embedding_model,
			sparse_embedding_updated_at, ingestion_status, ingestion_error,
			created_at, updated_at
		FROM resources ORDER BY id`)
	if err != nil {
		return nil, apperrors.Internal("resource list failed", err)
	}
	defer rows.Close()

	var out []*domain.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, apperrors.Internal("resource scan failed", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("resource list failed", err)
	}
	return out, nil
}

// Delete removes a resource (cascading resource_taxonomy rows).
func (s *ResourceStore) Delete(id string) error {
	res, err := s.db.Conn().Exec(`DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return apperrors.Internal("resource delete failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound(apperrors.CodeResourceNotFound, fmt.Sprintf("resource %s not found", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var r domain.Resource
	var subjectJSON, qualityJSON, weightsJSON string
	var embBlob []byte
	var sparseJSON sql.NullString
	var readStatus, ingestionStatus string
	var sparseUpdatedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Title, &r.Description, &subjectJSON, &r.Creator, &r.Publisher,
		&r.Language, &r.Type, &r.ClassificationCode, &readStatus, &r.QualityOverall,
		&qualityJSON, &weightsJSON, &embBlob, &sparseJSON, &r.SparseEmbeddingModel,
		&sparseUpdatedAt, &ingestionStatus, &r.IngestionError, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ReadStatus = domain.ReadStatus(readStatus)
	r.IngestionStatus = domain.IngestionStatus(ingestionStatus)
	if err := json.Unmarshal([]byte(subjectJSON), &r.Subject); err != nil {
		return nil, fmt.Errorf("unmarshal subject: %w", err)
	}
	if err := json.Unmarshal([]byte(qualityJSON), &r.Quality); err != nil {
		return nil, fmt.Errorf("unmarshal quality: %w", err)
	}
	if err := json.Unmarshal([]byte(weightsJSON), &r.QualityWeights); err != nil {
		return nil, fmt.Errorf("unmarshal quality weights: %w", err)
	}
	if sparseJSON.Valid && sparseJSON.String != "" {
		var sv domain.SparseVector
		if err := json.Unmarshal([]byte(sparseJSON.String), &sv); err != nil {
			return nil, fmt.Errorf("unmarshal sparse embedding: %w", err)
		}
		r.SparseEmbedding = sv
	}
	if sparseUpdatedAt.Valid {
		t := sparseUpdatedAt.Time
		r.SparseEmbeddingUpdatedAt = &t
	}
	r.Embedding = decodeFloat32Vector(embBlob)
	return &r, nil
}

func encodeFloat32Vector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32Vector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
