package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TrackedIdentifier is one allow-list entry. The tracker matches
// identifier as a lowercase substring against app names and
// window titles; an empty registry means "track everything"
// (that policy lives in the tracker, not here).
type TrackedIdentifier struct {
	ID         int64  `json:"id"`
	Identifier string `json:"identifier"`
}

// AddIdentifier inserts a new tracked identifier. Returns
// ErrDuplicateIdentifier when it already exists.
func (db *DB) AddIdentifier(
	ctx context.Context, identifier string,
) (TrackedIdentifier, error) {
	var out TrackedIdentifier
	err := db.Update(func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO tracked_identifiers (identifier) VALUES (?)",
			identifier,
		)
		if isUniqueViolation(err) {
			return ErrDuplicateIdentifier
		}
		if err != nil {
			return classify(
				fmt.Errorf("inserting identifier: %w", err),
			)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading identifier id: %w", err)
		}
		out = TrackedIdentifier{ID: id, Identifier: identifier}
		return nil
	})
	return out, err
}

// RemoveIdentifier deletes a tracked identifier by ID, returning
// the removed value. Returns ErrNotFound for an unknown ID.
func (db *DB) RemoveIdentifier(
	ctx context.Context, id int64,
) (TrackedIdentifier, error) {
	var out TrackedIdentifier
	err := db.Update(func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT id, identifier FROM tracked_identifiers WHERE id = ?",
			id,
		).Scan(&out.ID, &out.Identifier)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return classify(
				fmt.Errorf("resolving identifier %d: %w", id, err),
			)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM tracked_identifiers WHERE id = ?", id,
		); err != nil {
			return classify(
				fmt.Errorf("deleting identifier %d: %w", id, err),
			)
		}
		return nil
	})
	return out, err
}

// ListIdentifiers returns all tracked identifiers ordered by
// value, for stable output.
func (db *DB) ListIdentifiers(
	ctx context.Context,
) ([]TrackedIdentifier, error) {
	rows, err := db.reader.QueryContext(ctx,
		"SELECT id, identifier FROM tracked_identifiers"+
			" ORDER BY identifier",
	)
	if err != nil {
		return nil, classify(
			fmt.Errorf("querying identifiers: %w", err),
		)
	}
	defer rows.Close()

	var out []TrackedIdentifier
	for rows.Next() {
		var ti TrackedIdentifier
		if err := rows.Scan(&ti.ID, &ti.Identifier); err != nil {
			return nil, fmt.Errorf("scanning identifier: %w", err)
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}
