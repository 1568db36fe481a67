package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/usageview/usageview/internal/timeutil"
)

const (
	// MinWindowDays and MaxWindowDays bound the trailing window
	// for stats queries.
	MinWindowDays = 1
	MaxWindowDays = 365
	// DefaultWindowDays is used when the caller gives no window.
	DefaultWindowDays = 7

	topUserLimit = 10
)

// ErrInvalidWindow is returned for a window outside
// [MinWindowDays, MaxWindowDays].
var ErrInvalidWindow = errors.New("window must be between 1 and 365 days")

// UserDuration is one user's summed duration, in seconds.
type UserDuration struct {
	UserID   string `json:"user_id"`
	Duration int64  `json:"duration"`
}

// MostUsedResult is the winner of a trailing-window usage query.
// AppID is nil when no usage fell inside the window.
type MostUsedResult struct {
	AppID         *int64         `json:"app_id"`
	AppName       string         `json:"app_name"`
	WindowTitle   string         `json:"window_title"`
	TotalDuration int64          `json:"total_duration"`
	TopUsers      []UserDuration `json:"top_users"`
}

// MostUsed returns the single most-used application over the
// trailing windowDays ending today, with its top users. The
// winner is picked per identity row (ties to the lowest app ID);
// top users are summed across every user sharing the winner's
// (app name, window title) pair. An empty window yields a
// zero-value result, not an error.
func (db *DB) MostUsed(
	ctx context.Context, windowDays int,
) (MostUsedResult, error) {
	if windowDays < MinWindowDays || windowDays > MaxWindowDays {
		return MostUsedResult{}, ErrInvalidWindow
	}

	now := db.now()
	from := timeutil.DaysAgo(windowDays-1, now)
	to := timeutil.DateOf(now)

	result := MostUsedResult{TopUsers: []UserDuration{}}

	var appID int64
	err := db.reader.QueryRowContext(ctx, `
		SELECT l.app_id, a.app_name, a.window_title,
			SUM(l.duration) AS total
		FROM activity_logs l
		JOIN apps a ON a.id = l.app_id
		WHERE l.activity_date >= ? AND l.activity_date <= ?
		GROUP BY l.app_id
		ORDER BY total DESC, l.app_id ASC
		LIMIT 1`,
		from, to,
	).Scan(
		&appID, &result.AppName, &result.WindowTitle,
		&result.TotalDuration,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return result, nil
	}
	if err != nil {
		return MostUsedResult{}, classify(
			fmt.Errorf("querying most used: %w", err),
		)
	}
	result.AppID = &appID

	users, err := db.userDurations(ctx, `
		SELECT a.user_id, SUM(l.duration) AS total
		FROM activity_logs l
		JOIN apps a ON a.id = l.app_id
		WHERE a.app_name = ? AND a.window_title = ?
			AND l.activity_date >= ? AND l.activity_date <= ?
		GROUP BY a.user_id
		ORDER BY total DESC, a.user_id ASC
		LIMIT ?`,
		result.AppName, result.WindowTitle, from, to, topUserLimit,
	)
	if err != nil {
		return MostUsedResult{}, err
	}
	result.TopUsers = users
	return result, nil
}

// TopUsersForApp returns the top users of applications whose name
// contains fragment (case-insensitive) over the trailing window.
func (db *DB) TopUsersForApp(
	ctx context.Context, fragment string, windowDays int,
) ([]UserDuration, error) {
	if windowDays < MinWindowDays || windowDays > MaxWindowDays {
		return nil, ErrInvalidWindow
	}

	now := db.now()
	from := timeutil.DaysAgo(windowDays-1, now)
	to := timeutil.DateOf(now)

	return db.userDurations(ctx, `
		SELECT a.user_id, SUM(l.duration) AS total
		FROM activity_logs l
		JOIN apps a ON a.id = l.app_id
		WHERE instr(lower(a.app_name), lower(?)) > 0
			AND l.activity_date >= ? AND l.activity_date <= ?
		GROUP BY a.user_id
		ORDER BY total DESC, a.user_id ASC
		LIMIT ?`,
		fragment, from, to, topUserLimit,
	)
}

func (db *DB) userDurations(
	ctx context.Context, query string, args ...any,
) ([]UserDuration, error) {
	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(
			fmt.Errorf("querying user durations: %w", err),
		)
	}
	defer rows.Close()

	users := []UserDuration{}
	for rows.Next() {
		var u UserDuration
		if err := rows.Scan(&u.UserID, &u.Duration); err != nil {
			return nil, fmt.Errorf("scanning user duration: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DurationForApp sums seconds spent in applications whose name
// contains fragment (case-insensitive). With date set, only that
// calendar date counts; otherwise all recorded history.
func (db *DB) DurationForApp(
	ctx context.Context, fragment, date string,
) (int64, error) {
	query := `
		SELECT COALESCE(SUM(l.duration), 0)
		FROM activity_logs l
		JOIN apps a ON a.id = l.app_id
		WHERE instr(lower(a.app_name), lower(?)) > 0`
	args := []any{fragment}

	if date != "" {
		query += " AND l.activity_date = ?"
		args = append(args, date)
	}

	var total int64
	err := db.reader.QueryRowContext(ctx, query, args...).Scan(&total)
	if err != nil {
		return 0, classify(
			fmt.Errorf("querying app duration: %w", err),
		)
	}
	return total, nil
}

// SearchUsage returns the most recent usage rows whose app name
// or window title contains any of the tokens, case-insensitively.
// Used by the chatbot's free-text fallback.
func (db *DB) SearchUsage(
	ctx context.Context, tokens []string, limit int,
) ([]UsageRow, error) {
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}

	preds := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)*2+1)
	for _, tok := range tokens {
		preds = append(preds,
			"(instr(lower(a.app_name), ?) > 0"+
				" OR instr(lower(a.window_title), ?) > 0)")
		lt := strings.ToLower(tok)
		args = append(args, lt, lt)
	}
	args = append(args, limit)

	query := `SELECT ` + usageCols + `
		FROM activity_logs l
		JOIN apps a ON a.id = l.app_id
		WHERE ` + strings.Join(preds, " OR ") + `
		ORDER BY l.activity_date DESC, l.duration DESC, l.id ASC
		LIMIT ?`

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(
			fmt.Errorf("searching usage: %w", err),
		)
	}
	defer rows.Close()

	return scanUsageRows(rows)
}
