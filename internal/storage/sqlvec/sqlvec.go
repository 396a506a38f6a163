package sqlvec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/0x5457/repograph/internal/storage"
)

// Store keeps symbol vectors in a sqlite-vec vec0 table using cosine
// distance. vec_map links vec0 rowids to qualified names.
type Store struct {
	db        *sql.DB
	dimension int
}

var _ storage.VectorStore = (*Store)(nil)

func New(path string, dimension int) (*Store, error) {
	// enable sqlite-vec for all future connections
	sqlite_vec.Auto()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background(), dimension); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context, dim int) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS vec_map (
		rid INTEGER UNIQUE NOT NULL,
		id TEXT UNIQUE NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_vec_map_id ON vec_map(id);`); err != nil {
		return err
	}
	existing, err := s.tableDimension(ctx)
	if err != nil {
		return err
	}
	if existing > 0 {
		s.dimension = existing
		return nil
	}
	// If dim <= 0, defer creation until first Upsert when dimension is known.
	if dim > 0 {
		return s.createVecTable(ctx, s.db, dim)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) createVecTable(ctx context.Context, db execer, dim int) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
		embedding float32[%d] distance_metric=cosine
	);`, dim)); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS vec_meta (dimension INTEGER NOT NULL);
		DELETE FROM vec_meta;`); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO vec_meta(dimension) VALUES(?)`, dim); err != nil {
		return err
	}
	s.dimension = dim
	return nil
}

func (s *Store) tableDimension(ctx context.Context) (int, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='vec_meta'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var dim int
	err = s.db.QueryRowContext(ctx, `SELECT dimension FROM vec_meta LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.upsert(ctx, tx, ids, vectors); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, ids []string, vectors [][]float32) error {
	if s.dimension == 0 {
		if len(vectors[0]) == 0 {
			return fmt.Errorf("cannot create vec_embeddings: unknown embedding dimension")
		}
		if err := s.createVecTable(ctx, tx, len(vectors[0])); err != nil {
			return err
		}
	}

	insertVecStmt, err := tx.PrepareContext(ctx, `INSERT INTO vec_embeddings(embedding) VALUES(?)`)
	if err != nil {
		return err
	}
	defer func() { _ = insertVecStmt.Close() }()
	replaceVecStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO vec_embeddings(rowid, embedding) VALUES(?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = replaceVecStmt.Close() }()
	upsertMapStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO vec_map(rid, id) VALUES(?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = upsertMapStmt.Close() }()
	selectRidStmt, err := tx.PrepareContext(ctx, `SELECT rid FROM vec_map WHERE id = ?`)
	if err != nil {
		return err
	}
	defer func() { _ = selectRidStmt.Close() }()

	for i, id := range ids {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("vector for %s has dimension %d, want %d", id, len(vectors[i]), s.dimension)
		}
		v, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return err
		}
		var rid sql.NullInt64
		if err := selectRidStmt.QueryRowContext(ctx, id).Scan(&rid); err != nil &&
			!errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if rid.Valid {
			if _, err := replaceVecStmt.ExecContext(ctx, rid.Int64, v); err != nil {
				return err
			}
			continue
		}
		res, err := insertVecStmt.ExecContext(ctx, v)
		if err != nil {
			return err
		}
		newRid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := upsertMapStmt.ExecContext(ctx, newRid, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 || s.dimension == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, id := range ids {
		var rid sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT rid FROM vec_map WHERE id = ?`, id).Scan(&rid); err != nil &&
			!errors.Is(err, sql.ErrNoRows) {
			_ = tx.Rollback()
			return err
		}
		if !rid.Valid {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE rowid = ?`, rid.Int64); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_map WHERE rid = ?`, rid.Int64); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Reset drops every vector. The table is recreated on the next Upsert so a
// new embedding model may change the dimension.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS vec_embeddings;
		DROP TABLE IF EXISTS vec_meta;
		DELETE FROM vec_map;`); err != nil {
		return err
	}
	s.dimension = 0
	return nil
}

// MaxKNN is the largest k sqlite-vec accepts in a KNN query.
const MaxKNN = 4096

// Query returns the topK nearest vectors. topK is capped at MaxKNN.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]storage.ScoredID, error) {
	if s.dimension == 0 {
		return []storage.ScoredID{}, nil
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > MaxKNN {
		topK = MaxKNN
	}
	v, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, err
	}
	// KNN via MATCH ... ORDER BY distance using sqlite-vec
	rows, err := s.db.QueryContext(ctx, `
		WITH knn AS (
			SELECT rowid, distance
			FROM vec_embeddings
			WHERE embedding MATCH ?
			ORDER BY distance
			LIMIT ?
		)
		SELECT m.id, k.distance
		FROM knn k
		JOIN vec_map m ON m.rid = k.rowid
		ORDER BY k.distance ASC, m.id ASC
	`, v, topK)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []storage.ScoredID{}
	for rows.Next() {
		var hit storage.ScoredID
		var distance float64
		if err := rows.Scan(&hit.ID, &distance); err != nil {
			return nil, err
		}
		hit.Score = 1 - distance
		out = append(out, hit)
	}
	return out, rows.Err()
}
