package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Model is a catalog binding attached to one physical connection. Each
// connection needs its own handle; handles are cheap and never cached across
// requests. Entity rows are stored as JSONB documents keyed by id.
type Model struct {
	binding Binding
	db      *sql.DB
}

// Bind attaches a registered model to a connection.
func Bind(name Name, db *sql.DB) (*Model, error) {
	binding, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	return &Model{binding: binding, db: db}, nil
}

// Name returns the model's registered name.
func (m *Model) Name() Name {
	return m.binding.Name
}

// Table returns the backing table name.
func (m *Model) Table() string {
	return m.binding.Table
}

// Get fetches one entity document by id. sql.ErrNoRows is returned untouched
// when the id does not exist.
func (m *Model) Get(ctx context.Context, id string) (map[string]any, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE %s = $1`, m.binding.Table, m.binding.IDColumn)

	var raw []byte

	err := m.db.QueryRowContext(ctx, query, id).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %q: %w", m.binding.Name, id, err)
	}

	return decodeDocument(raw)
}

// FindOneByField fetches the first entity whose document field equals value.
func (m *Model) FindOneByField(ctx context.Context, field, value string) (map[string]any, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE data->>$1 = $2 LIMIT 1`, m.binding.Table)

	var raw []byte

	err := m.db.QueryRowContext(ctx, query, field, value).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s by %s=%q: %w", m.binding.Name, field, value, err)
	}

	return decodeDocument(raw)
}

// Upsert writes an entity document under id.
func (m *Model) Upsert(ctx context.Context, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", m.binding.Name, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (%s) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, m.binding.Table, m.binding.IDColumn, m.binding.IDColumn)

	_, err = m.db.ExecContext(ctx, query, id, raw)
	if err != nil {
		return fmt.Errorf("failed to upsert %s %q: %w", m.binding.Name, id, err)
	}

	return nil
}

func decodeDocument(raw []byte) (map[string]any, error) {
	var doc map[string]any

	err := json.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entity document: %w", err)
	}

	return doc, nil
}
