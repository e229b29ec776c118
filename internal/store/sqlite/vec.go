package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/store"
)

// similarityRows is the backend-native similarity primitive handed to the
// shared search executor. With sqlite-vec loaded it runs a KNN query
// against the notes_vec virtual table; otherwise it scans JSON embeddings
// in-process.
func (s *Store) similarityRows(ctx context.Context, vector []float32, threshold float64, limit int) ([]store.RawSearchRow, error) {
	if len(vector) != s.dim {
		return nil, apperr.Validationf("query vector has %d dimensions, index expects %d", len(vector), s.dim)
	}
	if s.vecAvailable {
		return s.vecRows(ctx, vector, threshold, limit)
	}
	return s.scanRows(ctx, vector, threshold, limit)
}

const searchSelect = `
	SELECT n.id, n.content, n.key_context,
	       (SELECT json_group_array(c.name)
	        FROM notes_contexts nc JOIN contexts c ON c.id = nc.context_id
	        WHERE nc.note_id = n.id),
	       n.tags, n.note_type, n.created_at, n.updated_at`

func (s *Store) vecRows(ctx context.Context, vector []float32, threshold float64, limit int) ([]store.RawSearchRow, error) {
	serialized, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, apperr.Persistence("serialize query vector", err)
	}

	// vec0 with a cosine metric reports distance = 1 - cosine similarity.
	rows, err := s.db.QueryContext(ctx, searchSelect+`,
	       1.0 - v.distance AS similarity
	FROM (
		SELECT rowid, distance FROM notes_vec
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	) v
	JOIN notes n ON n.rowid = v.rowid
	WHERE 1.0 - v.distance >= ?
	ORDER BY similarity DESC
	`, serialized, limit, threshold)
	if err != nil {
		return nil, apperr.Persistence("vector search", err)
	}
	defer rows.Close()
	return collectRawRows(rows)
}

// scanRows is the extension-less fallback: cosine similarity computed in
// Go over every stored embedding.
func (s *Store) scanRows(ctx context.Context, vector []float32, threshold float64, limit int) ([]store.RawSearchRow, error) {
	rows, err := s.db.QueryContext(ctx, searchSelect+`,
	       n.embedding
	FROM notes n
	WHERE n.embedding IS NOT NULL`)
	if err != nil {
		return nil, apperr.Persistence("embedding scan", err)
	}
	defer rows.Close()

	var out []store.RawSearchRow
	for rows.Next() {
		var r store.RawSearchRow
		var keyContext, contextsJSON, noteType, embJSON sql.NullString
		var tagsJSON string
		err := rows.Scan(&r.ID, &r.Content, &keyContext, &contextsJSON, &tagsJSON,
			&noteType, &r.CreatedAt, &r.UpdatedAt, &embJSON)
		if err != nil {
			return nil, apperr.Persistence("scan embedding row", err)
		}
		var emb []float32
		if !embJSON.Valid || json.Unmarshal([]byte(embJSON.String), &emb) != nil {
			continue
		}
		sim := cosineSimilarity(vector, emb)
		if sim < threshold {
			continue
		}
		r.KeyContext = nullableString(keyContext)
		r.Contexts = nullableString(contextsJSON)
		r.Tags = tagsJSON
		r.NoteType = nullableString(noteType)
		r.Similarity = sim
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("embedding scan", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func collectRawRows(rows *sql.Rows) ([]store.RawSearchRow, error) {
	var out []store.RawSearchRow
	for rows.Next() {
		var r store.RawSearchRow
		var keyContext, contextsJSON, noteType sql.NullString
		var tagsJSON string
		err := rows.Scan(&r.ID, &r.Content, &keyContext, &contextsJSON, &tagsJSON,
			&noteType, &r.CreatedAt, &r.UpdatedAt, &r.Similarity)
		if err != nil {
			return nil, apperr.Persistence("scan search row", err)
		}
		r.KeyContext = nullableString(keyContext)
		r.Contexts = nullableString(contextsJSON)
		r.Tags = tagsJSON
		r.NoteType = nullableString(noteType)
		out = append(out, r)
	}
	return out, rows.Err()
}

// syncVec refreshes a note's row in the vec0 index. vec0 does not reliably
// support INSERT OR REPLACE, so delete-then-insert.
func (s *Store) syncVec(ctx context.Context, tx *sql.Tx, noteID string, embedding []float32) error {
	if len(embedding) != s.dim {
		return apperr.Validationf("embedding has %d dimensions, index expects %d", len(embedding), s.dim)
	}
	var rowid int64
	if err := tx.QueryRowContext(ctx, `SELECT rowid FROM notes WHERE id = ?`, noteID).Scan(&rowid); err != nil {
		return apperr.Persistence("resolve note rowid", err)
	}
	serialized, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return apperr.Persistence("serialize embedding", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes_vec WHERE rowid = ?`, rowid); err != nil {
		return apperr.Persistence("clear vector row", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO notes_vec (rowid, embedding, note_id) VALUES (?, ?, ?)`, rowid, serialized, noteID); err != nil {
		return apperr.Persistence("insert vector row", err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func nullableString(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}
