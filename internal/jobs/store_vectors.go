package jobs

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TranscriptVector is one embedded transcript.
type TranscriptVector struct {
	ID        string
	JobID     string
	Model     string
	Embedding []float64
	CreatedAt time.Time
}

// VectorMatch is a search hit ordered by cosine similarity.
type VectorMatch struct {
	JobID    string
	VectorID string
	Score    float64
}

// SaveVector stores the embedding for jobID unless one already exists and
// returns the stored vector's id. A replayed index step therefore gets the
// id of the first write.
func (s *Store) SaveVector(ctx context.Context, jobID, model string, embedding []float64) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", errors.New("vector requires job id")
	}
	if len(embedding) == 0 {
		return "", errors.New("vector requires a non-empty embedding")
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO transcript_vectors (job_id, model, dimensions, embedding, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO NOTHING`,
		jobID,
		model,
		len(embedding),
		encodeEmbedding(embedding),
		formatTime(time.Now()),
	); err != nil {
		return "", fmt.Errorf("save vector: %w", err)
	}
	vec, err := s.GetVector(ctx, jobID)
	if err != nil {
		return "", err
	}
	if vec == nil {
		return "", errors.New("save vector: row missing after insert")
	}
	return vec.ID, nil
}

// GetVector returns the vector stored for jobID, or nil.
func (s *Store) GetVector(ctx context.Context, jobID string) (*TranscriptVector, error) {
	ctx = ensureContext(ctx)
	var (
		id         int64
		vec        TranscriptVector
		blob       []byte
		createdRaw sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, model, embedding, created_at FROM transcript_vectors WHERE job_id = ?`,
		jobID,
	).Scan(&id, &vec.JobID, &vec.Model, &blob, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	vec.ID = strconv.FormatInt(id, 10)
	vec.Embedding = decodeEmbedding(blob)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		vec.CreatedAt = created
	}
	return &vec, nil
}

// SearchVectors ranks stored vectors of the same dimension by cosine
// similarity to query and returns at most limit matches.
func (s *Store) SearchVectors(ctx context.Context, query []float64, limit int) ([]VectorMatch, error) {
	ctx = ensureContext(ctx)
	if len(query) == 0 {
		return nil, errors.New("search requires a non-empty query vector")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, embedding FROM transcript_vectors WHERE dimensions = ?`,
		len(query),
	)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var (
			id    int64
			jobID string
			blob  []byte
		)
		if err := rows.Scan(&id, &jobID, &blob); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		matches = append(matches, VectorMatch{
			JobID:    jobID,
			VectorID: strconv.FormatInt(id, 10),
			Score:    cosine(query, decodeEmbedding(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Embeddings are stored as little-endian float32.
func encodeEmbedding(v []float64) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(f)))
	}
	return out
}

func decodeEmbedding(b []byte) []float64 {
	out := make([]float64, len(b)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
	}
	return out
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
