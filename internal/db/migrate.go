package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/usageview/usageview/internal/timeutil"
)

// Names of the legacy flat-session table and its archived copy.
// The rename is the migration-complete marker: its presence makes
// every later startup skip migration, so totals are never
// double-counted. The archive is kept for auditing, not dropped.
const (
	legacyTable   = "activities"
	archivedTable = "activities_migrated"
)

// legacyKey groups flat sessions into aggregate buckets.
type legacyKey struct {
	userID      string
	appName     string
	windowTitle string
	date        string
}

// MigrateLegacy converts the legacy one-row-per-session table
// into the aggregated schema. It runs single-threaded from Open,
// before the server accepts traffic. The whole migration commits
// in one transaction ending with the archive rename, so a failed
// run leaves the legacy table untouched and a re-run re-sums from
// scratch with identical results.
func (db *DB) MigrateLegacy() error {
	hasLegacy, err := db.tableExists(legacyTable)
	if err != nil {
		return err
	}
	if !hasLegacy {
		return nil
	}
	hasArchive, err := db.tableExists(archivedTable)
	if err != nil {
		return err
	}
	if hasArchive {
		// Already migrated; the stray legacy table is left for
		// the operator to inspect rather than guessed at.
		return nil
	}

	totals, err := db.sumLegacyRows()
	if err != nil {
		return err
	}

	// Deterministic replay order (not required for correctness,
	// since the upsert commutes, but it makes app IDs stable).
	keys := make([]legacyKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.userID != b.userID {
			return a.userID < b.userID
		}
		if a.appName != b.appName {
			return a.appName < b.appName
		}
		if a.windowTitle != b.windowTitle {
			return a.windowTitle < b.windowTitle
		}
		return a.date < b.date
	})

	ctx := context.Background()
	return db.Update(func(tx *sql.Tx) error {
		for _, k := range keys {
			appID, err := getOrCreateApp(
				ctx, tx, k.userID, k.appName, k.windowTitle,
			)
			if err != nil {
				return fmt.Errorf(
					"migrating %s/%s: %w", k.userID, k.appName, err,
				)
			}
			if err := upsertDaily(
				ctx, tx, appID, k.date, totals[k],
			); err != nil {
				return fmt.Errorf(
					"migrating %s/%s: %w", k.userID, k.appName, err,
				)
			}
		}
		if _, err := tx.Exec(
			"ALTER TABLE " + legacyTable +
				" RENAME TO " + archivedTable,
		); err != nil {
			return fmt.Errorf("archiving legacy table: %w", err)
		}
		return nil
	})
}

// sumLegacyRows reads every legacy session and sums durations per
// (user, app, title, date) bucket. Sessions without a parseable
// timestamp land on the current date, mirroring RecordUsage's
// leniency.
func (db *DB) sumLegacyRows() (map[legacyKey]int64, error) {
	rows, err := db.writer.Query(
		"SELECT user_id, app_name, window_title, duration," +
			" timestamp FROM " + legacyTable,
	)
	if err != nil {
		return nil, classify(
			fmt.Errorf("reading legacy rows: %w", err),
		)
	}
	defer rows.Close()

	now := db.now()
	totals := make(map[legacyKey]int64)
	for rows.Next() {
		var userID, appName, windowTitle string
		var duration int64
		var ts sql.NullString
		if err := rows.Scan(
			&userID, &appName, &windowTitle, &duration, &ts,
		); err != nil {
			return nil, fmt.Errorf("scanning legacy row: %w", err)
		}
		if duration < 0 {
			duration = 0
		}
		k := legacyKey{
			userID:      userID,
			appName:     appName,
			windowTitle: windowTitle,
			date:        timeutil.DateOrNow(ts.String, now),
		}
		totals[k] += duration
	}
	return totals, rows.Err()
}
