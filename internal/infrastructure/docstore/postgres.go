package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);
`

// PostgresStore keeps every collection in a single JSONB table.
type PostgresStore struct {
	db           *sql.DB
	pollInterval time.Duration
}

func NewPostgresStore(db *sql.DB, pollInterval time.Duration) *PostgresStore {
	return &PostgresStore{db: db, pollInterval: pollInterval}
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the documents table when missing.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, postgresSchema)
	return err
}

func (ps *PostgresStore) AddDocument(ctx context.Context, collection string, data any) (string, error) {
	body, err := Normalize(data)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	_, err = ps.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, raw,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (ps *PostgresStore) GetDocuments(ctx context.Context, collection string) ([]Document, error) {
	return ps.QueryDocuments(ctx, collection, nil, nil)
}

func (ps *PostgresStore) GetDocumentByID(ctx context.Context, collection, id string) (*Document, error) {
	var raw []byte
	err := ps.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &Document{ID: id, Data: data}, nil
}

func (ps *PostgresStore) UpdateDocument(ctx context.Context, collection, id string, partial map[string]any) error {
	return ps.AtomicMultiWrite(ctx, []Write{{Kind: WriteUpdate, Collection: collection, ID: id, Data: partial}})
}

func (ps *PostgresStore) QueryDocuments(ctx context.Context, collection string, where []Where, orderBy *OrderBy) ([]Document, error) {
	normalized, err := normalizeWhere(where)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, data FROM documents WHERE collection = $1`
	args := []any{collection}
	if filter := containmentFilter(normalized); filter != nil {
		raw, err := json.Marshal(filter)
		if err != nil {
			return nil, err
		}
		query += ` AND data @> $2::jsonb`
		args = append(args, raw)
	}
	query += ` ORDER BY created_at, id`

	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("document %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Range operators and nested comparisons are evaluated here.
	return applyQuery(docs, normalized, orderBy), nil
}

func (ps *PostgresStore) SubscribeToQuery(ctx context.Context, collection string, where []Where, orderBy *OrderBy, onNext func([]Document), onError func(error)) (func(), error) {
	if _, err := normalizeWhere(where); err != nil {
		return nil, err
	}
	query := func(ctx context.Context) ([]Document, error) {
		return ps.QueryDocuments(ctx, collection, where, orderBy)
	}
	return pollQuery(ctx, ps.pollInterval, query, onNext, onError), nil
}

// AtomicMultiWrite applies writes inside one transaction.
func (ps *PostgresStore) AtomicMultiWrite(ctx context.Context, writes []Write) error {
	for _, w := range writes {
		if err := w.validate(); err != nil {
			return err
		}
	}

	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, w := range writes {
		body, err := Normalize(w.Data)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}

		switch w.Kind {
		case WriteSet:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO documents (collection, id, data)
				VALUES ($1, $2, $3)
				ON CONFLICT (collection, id) DO UPDATE SET
					data = EXCLUDED.data,
					updated_at = now()
			`, w.Collection, w.ID, raw)
			if err != nil {
				return err
			}
		case WriteUpdate:
			res, err := tx.ExecContext(ctx, `
				UPDATE documents SET data = data || $3::jsonb, updated_at = now()
				WHERE collection = $1 AND id = $2
			`, w.Collection, w.ID, raw)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrNotFound)
			}
		}
	}

	return tx.Commit()
}

// containmentFilter builds a JSONB document matching every scalar equality
// clause, or nil when none can be pushed down.
func containmentFilter(where []Where) map[string]any {
	var filter map[string]any
	for _, w := range where {
		if w.Op != OpEqual {
			continue
		}
		switch w.Value.(type) {
		case string, float64, bool:
		default:
			continue
		}
		if filter == nil {
			filter = map[string]any{}
		}
		parts := strings.Split(w.Field, ".")
		node := filter
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = w.Value
	}
	return filter
}
