package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/storage"
)

// SymbolStore mirrors files, symbols and call edges of the current index
// generation for SQL consumers.
type SymbolStore struct {
	db *sql.DB
}

var _ storage.SymbolStore = (*SymbolStore)(nil)

func New(path string) (*SymbolStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SymbolStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		language TEXT NOT NULL,
		hash TEXT NOT NULL,
		lines INTEGER NOT NULL,
		parse_mode TEXT NOT NULL,
		error TEXT
	);
	CREATE TABLE IF NOT EXISTS symbols (
		qualified_name TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		short_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		file TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		class TEXT,
		signature TEXT NOT NULL,
		docstring TEXT,
		body_hash TEXT NOT NULL,
		structural_hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	CREATE INDEX IF NOT EXISTS idx_symbols_short ON symbols(short_name);
	CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);
	CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
	CREATE TABLE IF NOT EXISTS calls (
		caller TEXT NOT NULL,
		ord INTEGER NOT NULL,
		target TEXT NOT NULL,
		PRIMARY KEY (caller, ord)
	);
	CREATE INDEX IF NOT EXISTS idx_calls_target ON calls(target);`)
	return err
}

func (s *SymbolStore) Close() error { return s.db.Close() }

// Replace rewrites every table from idx in one transaction.
func (s *SymbolStore) Replace(ctx context.Context, idx *models.Index) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := replace(ctx, tx, idx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func replace(ctx context.Context, tx *sql.Tx, idx *models.Index) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM calls; DELETE FROM symbols; DELETE FROM files;`); err != nil {
		return err
	}
	fileStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files(path,language,hash,lines,parse_mode,error) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer func() { _ = fileStmt.Close() }()
	for _, p := range idx.SortedFiles() {
		f := idx.Files[p]
		if _, err := fileStmt.ExecContext(ctx, f.Path, f.Language, f.Hash, f.Lines, string(f.ParseMode), f.Error); err != nil {
			return fmt.Errorf("insert file %s: %w", p, err)
		}
	}

	symStmt, err := tx.PrepareContext(ctx, `INSERT INTO symbols(
		qualified_name,name,short_name,kind,file,start_line,end_line,class,signature,docstring,body_hash,structural_hash
	) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer func() { _ = symStmt.Close() }()
	callStmt, err := tx.PrepareContext(ctx, `INSERT INTO calls(caller,ord,target) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer func() { _ = callStmt.Close() }()

	for _, q := range idx.SortedSymbols() {
		sym := idx.Symbols[q]
		sig, err := json.Marshal(sym.Signature)
		if err != nil {
			return err
		}
		if _, err := symStmt.ExecContext(ctx,
			q, sym.Name, sym.ShortName(), string(sym.Kind), sym.File, sym.Line, sym.EndLine,
			sym.Class, string(sig), sym.Docstring, sym.BodyHash, sym.StructuralHash,
		); err != nil {
			return fmt.Errorf("insert symbol %s: %w", q, err)
		}
		for i, t := range idx.CallGraph[q].Calls {
			if _, err := callStmt.ExecContext(ctx, q, i, t); err != nil {
				return fmt.Errorf("insert call %s -> %s: %w", q, t, err)
			}
		}
	}
	return nil
}

// FindByName matches qualified, dotted or short names.
func (s *SymbolStore) FindByName(ctx context.Context, name string) ([]models.SymbolRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		qualified_name,name,kind,file,start_line,end_line,class,signature,docstring,body_hash,structural_hash
		FROM symbols WHERE qualified_name = ? OR name = ? OR short_name = ?
		ORDER BY qualified_name`,
		name, name, name,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.SymbolRecord
	for rows.Next() {
		var sym models.SymbolRecord
		var kind, sig string
		var class, doc sql.NullString
		if err := rows.Scan(
			&sym.QualifiedName, &sym.Name, &kind, &sym.File, &sym.Line, &sym.EndLine,
			&class, &sig, &doc, &sym.BodyHash, &sym.StructuralHash,
		); err != nil {
			return nil, err
		}
		sym.Kind = models.StringToSymbolKind(kind)
		sym.Class = class.String
		sym.Docstring = doc.String
		if err := json.Unmarshal([]byte(sig), &sym.Signature); err != nil {
			return nil, err
		}
		calls, err := s.callsOf(ctx, sym.QualifiedName)
		if err != nil {
			return nil, err
		}
		sym.Calls = calls
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *SymbolStore) callsOf(ctx context.Context, q string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT target FROM calls WHERE caller = ? ORDER BY ord`, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
