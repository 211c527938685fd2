package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planejafacil/api/internal/db"
	"github.com/planejafacil/api/internal/util"
)

// PostgresSchema cria a tabela única de documentos.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	path        TEXT PRIMARY KEY,
	collection  TEXT NOT NULL,
	parent      TEXT NOT NULL,
	doc_id      TEXT NOT NULL,
	data        JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection, created_at);
CREATE INDEX IF NOT EXISTS documents_parent_idx ON documents (parent);
CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);
`

// Prefixos de caminho usam starts_with: ids podem conter _ e %, que LIKE
// trataria como curinga.
const (
	pgChildDocumentsSQL = `
		SELECT DISTINCT $1::text || '/' || split_part(substr(path, length($1::text) + 2), '/', 1) AS doc
		FROM documents
		WHERE starts_with(path, $1::text || '/')
		ORDER BY doc
		LIMIT $2`
	pgSubcollectionsSQL = `
		SELECT DISTINCT $1::text || '/' || split_part(substr(collection, length($1::text) + 2), '/', 1) AS coll
		FROM documents
		WHERE starts_with(collection, $1::text || '/')
		ORDER BY coll`
)

// Postgres implementa Store com documentos JSONB em uma única tabela.
// Documentos que existem apenas como pais de subcoleções são derivados do
// prefixo do caminho dos descendentes.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Store = (*Postgres)(nil)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPostgres usa um pool existente; migrate cria o schema se necessário.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, migrate bool) (*Postgres, error) {
	if migrate {
		if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
			return nil, fmt.Errorf("schema documents: %w", err)
		}
	}
	return &Postgres{pool: pool, now: time.Now}, nil
}

func (p *Postgres) Get(ctx context.Context, path string) (*Document, error) {
	if !IsDocumentPath(path) {
		return nil, ErrInvalidPath
	}
	var (
		id  string
		raw []byte
	)
	err := p.pool.QueryRow(ctx, `SELECT doc_id, data FROM documents WHERE path = $1`, path).Scan(&id, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	data, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Path: path, Data: data}, nil
}

func (p *Postgres) Set(ctx context.Context, path string, data map[string]any) error {
	return p.upsert(ctx, p.pool, path, data)
}

func (p *Postgres) upsert(ctx context.Context, q execer, path string, data map[string]any) error {
	coll, id, err := Split(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(ResolveTimestamps(data, p.now()))
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO documents (path, collection, parent, doc_id, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		path, coll, ParentDocument(coll), id, raw)
	return err
}

// Update mescla os campos informados sobre o JSONB existente.
func (p *Postgres) Update(ctx context.Context, path string, data map[string]any) error {
	if !IsDocumentPath(path) {
		return ErrInvalidPath
	}
	return p.merge(ctx, p.pool, path, data)
}

func (p *Postgres) merge(ctx context.Context, q execer, path string, data map[string]any) error {
	raw, err := json.Marshal(ResolveTimestamps(data, p.now()))
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		`UPDATE documents SET data = data || $2::jsonb, updated_at = now() WHERE path = $1`, path, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if !IsCollectionPath(collection) {
		return "", ErrInvalidPath
	}
	id := util.NewID()
	if err := p.Set(ctx, Join(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	if !IsDocumentPath(path) {
		return ErrInvalidPath
	}
	_, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
	return err
}

// Query combina os filtros de igualdade em um único objeto de contenção.
func (p *Postgres) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if !IsCollectionPath(collection) {
		return nil, ErrInvalidPath
	}
	containment := make(map[string]any, len(filters))
	for _, f := range filters {
		containment[f.Field] = f.Value
	}
	rawFilter, err := json.Marshal(containment)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT path, doc_id, data FROM documents
		WHERE collection = $1 AND data @> $2::jsonb
		ORDER BY created_at, path`, collection, rawFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			doc Document
			raw []byte
		)
		if err := rows.Scan(&doc.Path, &doc.ID, &raw); err != nil {
			return nil, err
		}
		if doc.Data, err = decodeJSON(raw); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (p *Postgres) ListDocumentPaths(ctx context.Context, collection string, limit int) ([]string, error) {
	if !IsCollectionPath(collection) {
		return nil, ErrInvalidPath
	}
	var lim any = limit
	if limit <= 0 {
		lim = nil
	}
	rows, err := p.pool.Query(ctx, pgChildDocumentsSQL, collection, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, rows.Err()
}

func (p *Postgres) Collections(ctx context.Context, docPath string) ([]string, error) {
	if !IsDocumentPath(docPath) {
		return nil, ErrInvalidPath
	}
	rows, err := p.pool.Query(ctx, pgSubcollectionsSQL, docPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var coll string
		if err := rows.Scan(&coll); err != nil {
			return nil, err
		}
		out = append(out, coll)
	}
	return out, rows.Err()
}

func (p *Postgres) Commit(ctx context.Context, batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	if batch.Len() > MaxBatchWrites {
		return ErrBatchTooLarge
	}
	return db.WithTx(ctx, p.pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, w := range batch.Writes() {
			if !IsDocumentPath(w.Path) {
				return ErrInvalidPath
			}
			switch w.Op {
			case OpDelete:
				if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE path = $1`, w.Path); err != nil {
					return err
				}
			case OpSet:
				if err := p.upsert(ctx, tx, w.Path, w.Data); err != nil {
					return err
				}
			case OpUpdate:
				if err := p.merge(ctx, tx, w.Path, w.Data); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close não fecha o pool, que pertence ao chamador.
func (p *Postgres) Close() error { return nil }

func decodeJSON(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
