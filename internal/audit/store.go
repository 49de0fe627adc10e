package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/fafa-store/internal/db"
)

// PgStore writes audit entries to Postgres.
type PgStore struct {
	DB db.DBTX
}

// Insert appends e.
func (s PgStore) Insert(ctx context.Context, e Entry) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		metadata = e.Metadata
	}
	_, err := s.DB.Exec(ctx, `INSERT INTO audit_logs
		(actor_kind, actor_user_id, action, resource_type, resource_id, method, path, status, ip, request_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(e.ActorKind), e.ActorUserID, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path,
		e.Status, e.IP, e.RequestID, metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns entries matching f newest first, with the total match count.
func (s PgStore) List(ctx context.Context, f Filter, limit, offset int) ([]Entry, int64, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("action", f.Action)
	add("resource_type", f.ResourceType)
	add("actor_user_id", f.ActorUserID)

	query := `SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
		method, path, status, ip, request_id, metadata, created_at, count(*) OVER ()
		FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	var (
		out   = make([]Entry, 0)
		total int64
	)
	for rows.Next() {
		var (
			e        Entry
			kind     string
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &kind, &e.ActorUserID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Method, &e.Path, &e.Status, &e.IP, &e.RequestID, &metadata, &e.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		e.ActorKind = ActorKind(kind)
		if len(metadata) > 0 {
			e.Metadata = metadata
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
