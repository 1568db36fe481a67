package tracker

import "strings"

// browserApps render the page title before their own name
// ("Watch Later - YouTube - Google Chrome"), so the leading
// segment is the interesting one. Everything else tends to put
// the document last ("Notepad - budget.txt").
var browserApps = map[string]bool{
	"chrome.exe":  true,
	"msedge.exe":  true,
	"firefox.exe": true,
}

// CleanTitle reduces a raw window title to the segment that
// names the content being viewed.
func CleanTitle(app, title string) string {
	title = strings.TrimSpace(title)
	parts := strings.Split(title, " - ")
	if len(parts) == 1 {
		return title
	}
	if browserApps[strings.ToLower(app)] {
		return strings.TrimSpace(parts[0])
	}
	return strings.TrimSpace(parts[len(parts)-1])
}
