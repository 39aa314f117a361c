package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/fasttranscribe/internal/folders"
	"github.com/maneesh/fasttranscribe/internal/models"
)

const schema = `CREATE TABLE IF NOT EXISTS folder_nodes (
	id         VARCHAR(64)  NOT NULL PRIMARY KEY,
	name       VARCHAR(255) NOT NULL,
	type       VARCHAR(16)  NOT NULL,
	parent_id  VARCHAR(64)  NULL,
	size       BIGINT       NOT NULL DEFAULT 0,
	created_at DATETIME     NOT NULL,
	INDEX idx_folder_nodes_parent (parent_id)
)`

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// TiDBClient persists the folder tree in TiDB with tracing
type TiDBClient struct {
	db *sql.DB
}

// NewTiDBClient initializes a new TiDB client
func NewTiDBClient(dsn string) (*TiDBClient, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &TiDBClient{db: db}, nil
}

// Close closes the database connection
func (tc *TiDBClient) Close() error {
	return tc.db.Close()
}

// EnsureSchema creates the folder_nodes table if it is missing
func (tc *TiDBClient) EnsureSchema(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "tidb.ensure_schema")
	defer span.End()

	if _, err := tc.db.ExecContext(ctx, schema); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Seed inserts records when the table is empty
func (tc *TiDBClient) Seed(ctx context.Context, records []models.NodeRecord) error {
	ctx, span := tracer.Start(ctx, "tidb.seed")
	defer span.End()

	var n int
	if err := tc.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM folder_nodes`).Scan(&n); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to count nodes: %w", err)
	}
	span.SetAttributes(attribute.Int("existing_count", n))
	if n > 0 {
		return nil
	}
	for _, rec := range records {
		if err := tc.CreateNode(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// ListNodes returns every node record
func (tc *TiDBClient) ListNodes(ctx context.Context) ([]models.NodeRecord, error) {
	ctx, span := tracer.Start(ctx, "tidb.list_nodes")
	defer span.End()

	query := `SELECT id, name, type, parent_id, size, created_at
			  FROM folder_nodes
			  ORDER BY created_at ASC`

	rows, err := tc.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var records []models.NodeRecord
	for rows.Next() {
		var (
			rec      models.NodeRecord
			nodeType string
			parentID sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&nodeType,
			&parentID,
			&rec.Size,
			&rec.CreatedAt,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		rec.Type = models.NodeType(nodeType)
		rec.ParentID = parentID.String
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	span.SetAttributes(
		attribute.Int("node_count", len(records)),
		attribute.Bool("query_success", true),
	)
	return records, nil
}

// CreateNode inserts a node record
func (tc *TiDBClient) CreateNode(ctx context.Context, rec models.NodeRecord) error {
	ctx, span := tracer.Start(ctx, "tidb.create_node",
		trace.WithAttributes(
			attribute.String("node_id", rec.ID),
			attribute.String("node_name", rec.Name),
			attribute.String("node_type", string(rec.Type)),
		),
	)
	defer span.End()

	query := `INSERT INTO folder_nodes (id, name, type, parent_id, size, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	parentID := sql.NullString{String: rec.ParentID, Valid: rec.ParentID != ""}
	_, err := tc.db.ExecContext(ctx, query, rec.ID, rec.Name, string(rec.Type), parentID, rec.Size, rec.CreatedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return folders.ErrExists
		}
		span.RecordError(err)
		return fmt.Errorf("failed to insert node: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// RenameNode changes the name of a node
func (tc *TiDBClient) RenameNode(ctx context.Context, id, name string) error {
	ctx, span := tracer.Start(ctx, "tidb.rename_node",
		trace.WithAttributes(
			attribute.String("node_id", id),
			attribute.String("node_name", name),
		),
	)
	defer span.End()

	var exists int
	err := tc.db.QueryRowContext(ctx, `SELECT 1 FROM folder_nodes WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return folders.ErrNotFound
	} else if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to query node: %w", err)
	}

	if _, err := tc.db.ExecContext(ctx, `UPDATE folder_nodes SET name = ? WHERE id = ?`, name, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to rename node: %w", err)
	}
	return nil
}

// DeleteNodes removes the given nodes in one statement
func (tc *TiDBClient) DeleteNodes(ctx context.Context, ids []string) error {
	ctx, span := tracer.Start(ctx, "tidb.delete_nodes",
		trace.WithAttributes(
			attribute.Int("node_count", len(ids)),
		),
	)
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM folder_nodes WHERE id IN (%s)`, placeholders)
	res, err := tc.db.ExecContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete nodes: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		span.SetAttributes(attribute.Int64("deleted_count", n))
	}
	return nil
}
