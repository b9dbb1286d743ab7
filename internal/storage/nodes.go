package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sanixdarker/strapisource/internal/nodes"
)

// Change describes what an upsert did.
type Change int

const (
	Unchanged Change = iota
	Created
	Updated
)

func (c Change) String() string {
	switch c {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "unchanged"
}

// NodeRepository handles database operations for nodes.
type NodeRepository struct {
	db *sql.DB
}

// NewNodeRepository creates a new NodeRepository.
func NewNodeRepository(db *sql.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

// Upsert stores n. A node whose digest did not change is left alone.
func (r *NodeRepository) Upsert(n *nodes.Node) (Change, error) {
	content, err := json.Marshal(n.Content)
	if err != nil {
		return Unchanged, fmt.Errorf("failed to encode node %s: %w", n.ID, err)
	}

	var digest string
	var createdAt time.Time
	err = r.db.QueryRow("SELECT content_digest, created_at FROM nodes WHERE id = ?", n.ID).Scan(&digest, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		n.CreatedAt = time.Now().UTC()
		n.UpdatedAt = n.CreatedAt
		_, err = r.db.Exec(`
			INSERT INTO nodes (id, type, remote_id, parent, content, content_digest, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.Type, n.RemoteID, n.Parent, string(content), n.Digest, n.CreatedAt, n.UpdatedAt)
		if err != nil {
			return Unchanged, fmt.Errorf("failed to create node: %w", err)
		}
		return Created, nil

	case err != nil:
		return Unchanged, fmt.Errorf("failed to get node digest: %w", err)

	case digest == n.Digest:
		n.CreatedAt = createdAt
		return Unchanged, nil
	}

	n.CreatedAt = createdAt
	n.UpdatedAt = time.Now().UTC()
	_, err = r.db.Exec(`
		UPDATE nodes SET type = ?, remote_id = ?, parent = ?, content = ?, content_digest = ?, updated_at = ?
		WHERE id = ?
	`, n.Type, n.RemoteID, n.Parent, string(content), n.Digest, n.UpdatedAt, n.ID)
	if err != nil {
		return Unchanged, fmt.Errorf("failed to update node: %w", err)
	}
	return Updated, nil
}

// Get retrieves a node by id. It returns nil when the node does not exist.
func (r *NodeRepository) Get(id string) (*nodes.Node, error) {
	row := r.db.QueryRow(`
		SELECT id, type, remote_id, parent, content, content_digest, created_at, updated_at
		FROM nodes WHERE id = ?
	`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return n, nil
}

// ListByType retrieves nodes of a type with pagination, ordered by remote id.
func (r *NodeRepository) ListByType(nodeType string, offset, limit int) ([]*nodes.Node, int, error) {
	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM nodes WHERE type = ?", nodeType).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count nodes: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT id, type, remote_id, parent, content, content_digest, created_at, updated_at
		FROM nodes WHERE type = ? ORDER BY remote_id LIMIT ? OFFSET ?
	`, nodeType, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var list []*nodes.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan node: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list nodes: %w", err)
	}

	return list, total, nil
}

// Types returns every stored node type with its node count.
func (r *NodeRepository) Types() (map[string]int, error) {
	rows, err := r.db.Query("SELECT type, COUNT(*) FROM nodes GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to get node types: %w", err)
	}
	defer rows.Close()

	types := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan node type: %w", err)
		}
		types[name] = count
	}
	return types, rows.Err()
}

// DeleteStale removes the nodes of nodeType whose id is not in keep and
// returns how many were removed.
func (r *NodeRepository) DeleteStale(nodeType string, keep []string) (int64, error) {
	query := "DELETE FROM nodes WHERE type = ?"
	args := []any{nodeType}
	if len(keep) > 0 {
		query += " AND id NOT IN (?" + strings.Repeat(", ?", len(keep)-1) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale nodes: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*nodes.Node, error) {
	n := &nodes.Node{}
	var content string
	err := s.Scan(&n.ID, &n.Type, &n.RemoteID, &n.Parent, &content, &n.Digest, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &n.Content); err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", n.ID, err)
	}
	return n, nil
}
