// Package catalog persists extracted BOM records in a DuckDB file so node
// queries and searches can span every document processed so far, without
// holding the trees in memory.
package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marcboeker/go-duckdb"
	"github.com/step-visualizer/backend/internal/models"
)

// DocumentInfo is one catalog row describing an extracted document.
type DocumentInfo struct {
	UniqueName      string `json:"uniqueName"`
	Filename        string `json:"filename"`
	FullPath        string `json:"fullPath"`
	ExtractedAt     string `json:"extractedAt"`
	TotalParts      int    `json:"totalParts"`
	TotalAssemblies int    `json:"totalAssemblies"`
}

// NodeRow is one catalog row describing an assembly node.
type NodeRow struct {
	Doc           string `json:"doc"`
	ID            uint   `json:"id"`
	ParentID      *uint  `json:"parentId"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	ShapeKind     string `json:"shapeKind"`
	ColorHex      string `json:"colorHex"`
	ReferenceName string `json:"referenceName,omitempty"`
}

// Store is a DuckDB-backed BOM catalog.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open creates or opens the catalog database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	return OpenAtPath(filepath.Join(dataDir, "bom_catalog.duckdb"))
}

// OpenAtPath creates or opens the catalog database at a specific path.
func OpenAtPath(dbPath string) (*Store, error) {
	fmt.Printf("[Catalog] opening database at: %s\n", dbPath)

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			unique_name      VARCHAR PRIMARY KEY,
			filename         VARCHAR NOT NULL,
			full_path        VARCHAR NOT NULL,
			extracted_at     VARCHAR NOT NULL,
			total_parts      INTEGER NOT NULL,
			total_assemblies INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nodes (
			doc            VARCHAR NOT NULL,
			id             INTEGER NOT NULL,
			parent_id      INTEGER,
			name           VARCHAR NOT NULL,
			kind           VARCHAR NOT NULL,
			shape_kind     VARCHAR NOT NULL,
			color_hex      VARCHAR,
			reference_name VARCHAR
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating catalog schema: %w", err)
		}
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordDocument inserts one extracted BOM record and all its nodes in a
// single transaction. Re-recording the same unique name is an error.
func (s *Store) RecordDocument(uniqueName string, record *models.BOMDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting catalog transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO documents (unique_name, filename, full_path, extracted_at, total_parts, total_assemblies)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uniqueName, record.Filename, record.FullPath, record.Timestamp,
		record.TotalParts, record.TotalAssemblies,
	)
	if err != nil {
		return fmt.Errorf("inserting document row: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO nodes (doc, id, parent_id, name, kind, shape_kind, color_hex, reference_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing node insert: %w", err)
	}
	defer stmt.Close()

	for _, node := range record.AssemblyTree {
		var parentID interface{}
		if node.ParentID != nil {
			parentID = int64(*node.ParentID)
		}
		var colorHex interface{}
		if node.Color != nil {
			colorHex = node.Color.Hex
		}
		var refName interface{}
		if node.ReferenceName != nil {
			refName = *node.ReferenceName
		}

		if _, err := stmt.Exec(uniqueName, int64(node.ID), parentID, node.Name,
			string(node.Kind), node.ShapeKind, colorHex, refName); err != nil {
			return fmt.Errorf("inserting node %d: %w", node.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog transaction: %w", err)
	}

	fmt.Printf("[Catalog] recorded %s (%d nodes)\n", uniqueName, len(record.AssemblyTree))
	return nil
}

// ListDocuments returns catalog entries, most recently extracted first.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unique_name, filename, full_path, extracted_at, total_parts, total_assemblies
		 FROM documents ORDER BY extracted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.UniqueName, &d.Filename, &d.FullPath, &d.ExtractedAt,
			&d.TotalParts, &d.TotalAssemblies); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SearchNodes finds nodes across all cataloged documents whose name
// contains term, in document + tree order.
func (s *Store) SearchNodes(ctx context.Context, term string, caseSensitive bool, limit int) ([]NodeRow, error) {
	var where string
	if caseSensitive {
		where = "name LIKE ?"
	} else {
		where = "lower(name) LIKE ?"
		term = strings.ToLower(term)
	}

	query := fmt.Sprintf(
		`SELECT doc, id, parent_id, name, kind, shape_kind, color_hex, reference_name
		 FROM nodes WHERE %s ORDER BY doc, id LIMIT ?`, where)

	rows, err := s.db.QueryContext(ctx, query, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("searching nodes: %w", err)
	}
	defer rows.Close()

	return scanNodeRows(rows)
}

// ChildrenOf returns the direct children of a node within one document.
func (s *Store) ChildrenOf(ctx context.Context, doc string, id uint) ([]NodeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc, id, parent_id, name, kind, shape_kind, color_hex, reference_name
		 FROM nodes WHERE doc = ? AND parent_id = ? ORDER BY id`, doc, int64(id))
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	return scanNodeRows(rows)
}

// DescendantsOf returns the transitive closure of ChildrenOf via a
// recursive CTE, ordered by node id (emission order).
func (s *Store) DescendantsOf(ctx context.Context, doc string, id uint) ([]NodeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`WITH RECURSIVE sub AS (
			SELECT * FROM nodes WHERE doc = ? AND parent_id = ?
			UNION ALL
			SELECT n.* FROM nodes n JOIN sub ON n.doc = sub.doc AND n.parent_id = sub.id
		)
		SELECT doc, id, parent_id, name, kind, shape_kind, color_hex, reference_name
		FROM sub ORDER BY id`, doc, int64(id))
	if err != nil {
		return nil, fmt.Errorf("querying descendants: %w", err)
	}
	defer rows.Close()

	return scanNodeRows(rows)
}

func scanNodeRows(rows *sql.Rows) ([]NodeRow, error) {
	var nodes []NodeRow
	for rows.Next() {
		var n NodeRow
		var parentID sql.NullInt64
		var colorHex, refName sql.NullString

		if err := rows.Scan(&n.Doc, &n.ID, &parentID, &n.Name, &n.Kind,
			&n.ShapeKind, &colorHex, &refName); err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}

		if parentID.Valid {
			p := uint(parentID.Int64)
			n.ParentID = &p
		}
		n.ColorHex = colorHex.String
		n.ReferenceName = refName.String
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
