package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// controlActionLimit bounds the audit log; oldest entries are pruned.
const controlActionLimit = 200

// AppendControlAction records an audit entry and prunes beyond the bound.
func (s *Store) AppendControlAction(ctx context.Context, actor, action, detail string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin control action: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO control_actions (id, at, actor, action, detail) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(),
		time.Now().UTC().Format(time.RFC3339Nano),
		nullableString(actor),
		action,
		nullableString(detail),
	); err != nil {
		return fmt.Errorf("insert control action: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM control_actions WHERE id NOT IN (
            SELECT id FROM control_actions ORDER BY at DESC, id DESC LIMIT ?
        )`,
		controlActionLimit,
	); err != nil {
		return fmt.Errorf("prune control actions: %w", err)
	}
	return tx.Commit()
}

// ListControlActions returns the most recent audit entries, newest first.
func (s *Store) ListControlActions(ctx context.Context, limit int) ([]ControlAction, error) {
	if limit <= 0 || limit > controlActionLimit {
		limit = controlActionLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, at, actor, action, detail FROM control_actions ORDER BY at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list control actions: %w", err)
	}
	defer rows.Close()

	var actions []ControlAction
	for rows.Next() {
		var (
			entry  ControlAction
			atRaw  string
			actor  sql.NullString
			detail sql.NullString
		)
		if err := rows.Scan(&entry.ID, &atRaw, &actor, &entry.Action, &detail); err != nil {
			return nil, err
		}
		entry.Actor = actor.String
		entry.Detail = detail.String
		if at, err := parseTimeString(atRaw); err == nil {
			entry.At = at
		}
		actions = append(actions, entry)
	}
	return actions, rows.Err()
}
