// Package chatbot maps free-text questions about app usage to
// parameterized analytics queries. Classification is a fixed
// priority list of rules; the first match wins. The ordering is a
// contract: "top apps last 14 days" contains both top-apps
// phrasing and a bare number, and must resolve to the most-used
// intent, never the free-text fallback.
package chatbot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/usageview/usageview/internal/db"
)

// Kind labels the resolved intent of a query.
type Kind string

const (
	KindMostUsed Kind = "most_used"
	KindDuration Kind = "duration"
	KindTopUsers Kind = "top_users"
	KindSearch   Kind = "search"
	KindHelp     Kind = "help"
)

// searchLimit caps the free-text fallback at the most recent
// matches.
const searchLimit = 8

// Intent is the parsed form of a query, ready to execute.
type Intent struct {
	Kind   Kind
	Days   int      // most_used, top_users
	Unit   string   // duration: seconds, minutes, hours
	App    string   // duration, top_users: app name fragment
	Date   string   // duration: optional YYYY-MM-DD
	Tokens []string // search
}

// Answer is a rendered chatbot response.
type Answer struct {
	Intent Kind   `json:"intent"`
	Text   string `json:"answer"`
}

const helpText = "I can answer questions like: " +
	`"top apps last 7 days", ` +
	`"how many minutes on chrome", ` +
	`"how many hours on slack on 2025-06-01", ` +
	`"top users for code last 14 days", ` +
	"or any app or window name to search recent activity."

var (
	mostUsedRe = regexp.MustCompile(
		`(?i)\b(?:top\s+apps?|most[\s-]used)\b`)
	lastDaysRe = regexp.MustCompile(
		`(?i)\blast\s+(\d+)\s+days?\b`)
	singleDayRe = regexp.MustCompile(
		`(?i)\b(?:today|yesterday)\b`)
	durationRe = regexp.MustCompile(
		`(?i)\bhow\s+(?:much|many)\s+` +
			`(seconds?|minutes?|hours?)\b.*?` +
			`\bon\s+(.+?)` +
			`(?:\s+on\s+(\d{4}-\d{2}-\d{2}))?\s*[?.!]*$`)
	topUsersRe = regexp.MustCompile(
		`(?i)\btop\s+users?\b(?:\s+(?:for|of|in))?\s+(.+?)` +
			`(?:\s+(?:over\s+the\s+|in\s+the\s+)?` +
			`last\s+\d+\s+days?)?\s*[?.!]*$`)
)

// stopwords are dropped from fallback search tokens.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "app": true, "apps": true,
	"did": true, "do": true, "for": true, "how": true, "i": true,
	"in": true, "is": true, "it": true, "me": true, "my": true,
	"of": true,
	"on": true, "show": true, "spend": true, "spent": true,
	"the": true, "time": true, "to": true, "usage": true,
	"was": true, "what": true, "when": true, "where": true,
	"which": true, "who": true,
}

// rule is one classification step: match returns the parsed
// intent and true when the rule applies.
type rule struct {
	name  string
	match func(q string) (Intent, bool)
}

// rules in priority order. Classify tries them top to bottom.
var rules = []rule{
	{"most_used", matchMostUsed},
	{"duration", matchDuration},
	{"top_users", matchTopUsers},
	{"search", matchSearch},
}

// Classify resolves a query to an Intent. It never fails: a
// query no rule claims becomes KindHelp.
func Classify(query string) Intent {
	q := strings.TrimSpace(query)
	if q == "" {
		return Intent{Kind: KindHelp}
	}
	for _, r := range rules {
		if intent, ok := r.match(q); ok {
			return intent
		}
	}
	return Intent{Kind: KindHelp}
}

func matchMostUsed(q string) (Intent, bool) {
	if !mostUsedRe.MatchString(q) {
		return Intent{}, false
	}
	return Intent{Kind: KindMostUsed, Days: parseDays(q)}, true
}

func matchDuration(q string) (Intent, bool) {
	m := durationRe.FindStringSubmatch(q)
	if m == nil {
		return Intent{}, false
	}
	unit := strings.ToLower(strings.TrimSuffix(m[1], "s")) + "s"
	return Intent{
		Kind: KindDuration,
		Unit: unit,
		App:  strings.TrimSpace(m[2]),
		Date: m[3],
	}, true
}

func matchTopUsers(q string) (Intent, bool) {
	m := topUsersRe.FindStringSubmatch(q)
	if m == nil {
		return Intent{}, false
	}
	return Intent{
		Kind: KindTopUsers,
		App:  strings.TrimSpace(m[1]),
		Days: parseDays(q),
	}, true
}

func matchSearch(q string) (Intent, bool) {
	tokens, err := shlex.Split(strings.ToLower(q))
	if err != nil {
		tokens = strings.Fields(strings.ToLower(q))
	}
	var kept []string
	for _, tok := range tokens {
		tok = strings.Trim(tok, "?.!,")
		if len(tok) < 2 || stopwords[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return Intent{}, false
	}
	return Intent{Kind: KindSearch, Tokens: kept}, true
}

// parseDays extracts a trailing-window size: "last N days" wins,
// "today"/"yesterday" mean a one-day window, otherwise the
// default. Out-of-range values clamp to the valid window.
func parseDays(q string) int {
	if m := lastDaysRe.FindStringSubmatch(q); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return min(max(n, db.MinWindowDays), db.MaxWindowDays)
		}
	}
	if singleDayRe.MatchString(q) {
		return 1
	}
	return db.DefaultWindowDays
}

// Store is the slice of the aggregation store the bot queries.
type Store interface {
	MostUsed(ctx context.Context, windowDays int) (db.MostUsedResult, error)
	TopUsersForApp(ctx context.Context, fragment string, windowDays int) ([]db.UserDuration, error)
	DurationForApp(ctx context.Context, fragment, date string) (int64, error)
	SearchUsage(ctx context.Context, tokens []string, limit int) ([]db.UsageRow, error)
}

// Bot answers usage questions against a Store.
type Bot struct {
	store Store
}

// New creates a Bot backed by store.
func New(store Store) *Bot {
	return &Bot{store: store}
}

// Answer classifies query and executes the matching analytics
// call, returning a rendered English answer.
func (b *Bot) Answer(
	ctx context.Context, query string,
) (Answer, error) {
	intent := Classify(query)

	switch intent.Kind {
	case KindMostUsed:
		return b.answerMostUsed(ctx, intent)
	case KindDuration:
		return b.answerDuration(ctx, intent)
	case KindTopUsers:
		return b.answerTopUsers(ctx, intent)
	case KindSearch:
		return b.answerSearch(ctx, intent)
	default:
		return Answer{Intent: KindHelp, Text: helpText}, nil
	}
}

func (b *Bot) answerMostUsed(
	ctx context.Context, intent Intent,
) (Answer, error) {
	res, err := b.store.MostUsed(ctx, intent.Days)
	if err != nil {
		return Answer{}, err
	}
	if res.AppID == nil {
		return Answer{
			Intent: KindMostUsed,
			Text: fmt.Sprintf(
				"No tracked usage in the last %s.",
				plural(intent.Days, "day"),
			),
		}, nil
	}

	text := fmt.Sprintf(
		"Most used in the last %s: %s (%s) with %s.",
		plural(intent.Days, "day"),
		res.AppName, res.WindowTitle,
		humanDuration(res.TotalDuration),
	)
	if len(res.TopUsers) > 0 {
		var parts []string
		for _, u := range res.TopUsers {
			parts = append(parts, fmt.Sprintf(
				"%s (%s)", u.UserID, humanDuration(u.Duration),
			))
		}
		text += " Top users: " + strings.Join(parts, ", ") + "."
	}
	return Answer{Intent: KindMostUsed, Text: text}, nil
}

func (b *Bot) answerDuration(
	ctx context.Context, intent Intent,
) (Answer, error) {
	seconds, err := b.store.DurationForApp(
		ctx, intent.App, intent.Date,
	)
	if err != nil {
		return Answer{}, err
	}

	span := "in total"
	if intent.Date != "" {
		span = "on " + intent.Date
	}
	return Answer{
		Intent: KindDuration,
		Text: fmt.Sprintf("You spent %s on %s %s.",
			formatUnit(seconds, intent.Unit), intent.App, span),
	}, nil
}

func (b *Bot) answerTopUsers(
	ctx context.Context, intent Intent,
) (Answer, error) {
	users, err := b.store.TopUsersForApp(
		ctx, intent.App, intent.Days,
	)
	if err != nil {
		return Answer{}, err
	}
	if len(users) == 0 {
		return Answer{
			Intent: KindTopUsers,
			Text: fmt.Sprintf(
				"No usage of %q in the last %s.",
				intent.App, plural(intent.Days, "day"),
			),
		}, nil
	}

	var lines []string
	for i, u := range users {
		lines = append(lines, fmt.Sprintf("%d. %s — %s",
			i+1, u.UserID, humanDuration(u.Duration)))
	}
	return Answer{
		Intent: KindTopUsers,
		Text: fmt.Sprintf("Top users for %q in the last %s:\n%s",
			intent.App, plural(intent.Days, "day"),
			strings.Join(lines, "\n")),
	}, nil
}

func (b *Bot) answerSearch(
	ctx context.Context, intent Intent,
) (Answer, error) {
	rows, err := b.store.SearchUsage(
		ctx, intent.Tokens, searchLimit,
	)
	if err != nil {
		return Answer{}, err
	}
	if len(rows) == 0 {
		return Answer{
			Intent: KindSearch,
			Text: fmt.Sprintf(
				"No activity matching %q.",
				strings.Join(intent.Tokens, " "),
			),
		}, nil
	}

	var lines []string
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s: %s (%s) — %s by %s",
			r.ActivityDate, r.AppName, r.WindowTitle,
			humanDuration(r.Duration), r.UserID))
	}
	return Answer{
		Intent: KindSearch,
		Text:   "Recent matching activity:\n" + strings.Join(lines, "\n"),
	}, nil
}

// formatUnit converts seconds to the requested unit: seconds as
// an integer, minutes to one decimal place, hours to two.
func formatUnit(seconds int64, unit string) string {
	switch unit {
	case "minutes":
		return fmt.Sprintf("%.1f minutes", float64(seconds)/60)
	case "hours":
		return fmt.Sprintf("%.2f hours", float64(seconds)/3600)
	default:
		return fmt.Sprintf("%d seconds", seconds)
	}
}

// humanDuration renders seconds as a compact h/m/s string.
func humanDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0 && s > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
