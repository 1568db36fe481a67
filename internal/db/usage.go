package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/usageview/usageview/internal/timeutil"
)

// Application is an identity row: one per (user, app, window
// title) triple. The triple is the natural key; ID is a surrogate
// referenced by usage rows.
type Application struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title"`
}

// UsageRow is one application's total for one calendar day,
// joined with its identity for display.
type UsageRow struct {
	ID           int64  `json:"id"`
	AppID        int64  `json:"app_id"`
	UserID       string `json:"user_id"`
	AppName      string `json:"app_name"`
	WindowTitle  string `json:"window_title"`
	ActivityDate string `json:"activity_date"`
	Duration     int64  `json:"duration"`
}

// RecordResult identifies the row a RecordUsage call landed in.
type RecordResult struct {
	AppID        int64  `json:"app_id"`
	ActivityDate string `json:"activity_date"`
}

// RecordUsage resolves or creates the application row for the
// natural key and adds duration seconds to its total for the
// session's calendar date. The date comes from timestamp when it
// parses, otherwise from the current local date. Calls with the
// same key commute: totals always sum regardless of ordering.
func (db *DB) RecordUsage(
	ctx context.Context,
	userID, appName, windowTitle string,
	duration int64, timestamp string,
) (RecordResult, error) {
	if duration < 0 {
		return RecordResult{}, ErrInvalidDuration
	}

	date := timeutil.DateOrNow(timestamp, db.now())

	var appID int64
	err := db.Update(func(tx *sql.Tx) error {
		var err error
		appID, err = getOrCreateApp(
			ctx, tx, userID, appName, windowTitle,
		)
		if err != nil {
			return err
		}
		return upsertDaily(ctx, tx, appID, date, duration)
	})
	if err != nil {
		return RecordResult{}, err
	}
	return RecordResult{AppID: appID, ActivityDate: date}, nil
}

// getOrCreateApp resolves the apps row for the natural key,
// inserting it when first seen. ON CONFLICT DO NOTHING plus a
// re-select keeps repeated calls from ever duplicating the key.
func getOrCreateApp(
	ctx context.Context, tx *sql.Tx,
	userID, appName, windowTitle string,
) (int64, error) {
	const lookup = `SELECT id FROM apps
		WHERE user_id = ? AND app_name = ? AND window_title = ?`

	var id int64
	err := tx.QueryRowContext(
		ctx, lookup, userID, appName, windowTitle,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, classify(fmt.Errorf("resolving app: %w", err))
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO apps (user_id, app_name, window_title)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, app_name, window_title) DO NOTHING`,
		userID, appName, windowTitle)
	if err != nil {
		return 0, classify(fmt.Errorf("creating app: %w", err))
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}

	// The insert was a no-op, so the row must exist.
	err = tx.QueryRowContext(
		ctx, lookup, userID, appName, windowTitle,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCreateRace
	}
	if err != nil {
		return 0, classify(fmt.Errorf("re-resolving app: %w", err))
	}
	return id, nil
}

// upsertDaily adds duration to the (app, date) total, creating
// the row on first report. Strictly additive; totals never
// decrease.
func upsertDaily(
	ctx context.Context, tx *sql.Tx,
	appID int64, date string, duration int64,
) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO activity_logs (app_id, activity_date, duration)
		VALUES (?, ?, ?)
		ON CONFLICT(app_id, activity_date)
		DO UPDATE SET duration = duration + excluded.duration`,
		appID, date, duration)
	if err != nil {
		return classify(fmt.Errorf("upserting daily usage: %w", err))
	}
	return nil
}

// ListApplications returns all application identities ordered by
// (user, app name).
func (db *DB) ListApplications(
	ctx context.Context,
) ([]Application, error) {
	rows, err := db.reader.QueryContext(ctx, `
		SELECT id, user_id, app_name, window_title
		FROM apps
		ORDER BY user_id, app_name, window_title, id`)
	if err != nil {
		return nil, classify(
			fmt.Errorf("querying applications: %w", err),
		)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.AppName, &a.WindowTitle,
		); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// UsageFilter restricts ListUsage. Zero values mean no filter;
// date bounds are inclusive.
type UsageFilter struct {
	AppID     int64
	StartDate string
	EndDate   string
}

// usageCols is the joined column list shared by usage queries.
const usageCols = `l.id, l.app_id, a.user_id, a.app_name,
	a.window_title, l.activity_date, l.duration`

// ListUsage returns joined usage rows matching the filter, most
// recent date first, longest duration first within a date. The
// id tiebreak makes output order fully deterministic.
func (db *DB) ListUsage(
	ctx context.Context, f UsageFilter,
) ([]UsageRow, error) {
	preds := []string{"1=1"}
	var args []any

	if f.AppID > 0 {
		preds = append(preds, "l.app_id = ?")
		args = append(args, f.AppID)
	}
	if f.StartDate != "" {
		preds = append(preds, "l.activity_date >= ?")
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		preds = append(preds, "l.activity_date <= ?")
		args = append(args, f.EndDate)
	}

	query := `SELECT ` + usageCols + `
		FROM activity_logs l
		JOIN apps a ON a.id = l.app_id
		WHERE ` + strings.Join(preds, " AND ") + `
		ORDER BY l.activity_date DESC, l.duration DESC, l.id ASC`

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("querying usage: %w", err))
	}
	defer rows.Close()

	return scanUsageRows(rows)
}

func scanUsageRows(rows *sql.Rows) ([]UsageRow, error) {
	var out []UsageRow
	for rows.Next() {
		var u UsageRow
		if err := rows.Scan(
			&u.ID, &u.AppID, &u.UserID, &u.AppName,
			&u.WindowTitle, &u.ActivityDate, &u.Duration,
		); err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
