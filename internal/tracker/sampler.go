package tracker

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrNoSampler means no foreground-window source is available on
// this build. Window enumeration needs platform bindings that
// are wired in separately; without them the track subcommand can
// only run against an explicit sample source.
var ErrNoSampler = errors.New(
	"no window sampler available on this platform",
)

// PlatformSampler returns the native foreground-window sampler.
func PlatformSampler() (SampleFunc, error) {
	return nil, ErrNoSampler
}

// LineSampler reads tab-separated "app<TAB>title" lines from r,
// one per poll tick. EOF or a malformed line reads as "no
// window". A blank line also reads as "no window", which closes
// the current session.
func LineSampler(r io.Reader) SampleFunc {
	sc := bufio.NewScanner(r)
	var mu sync.Mutex
	return func() (string, string, bool) {
		mu.Lock()
		defer mu.Unlock()
		if !sc.Scan() {
			return "", "", false
		}
		line := strings.TrimRight(sc.Text(), "\r\n")
		app, title, ok := strings.Cut(line, "\t")
		if !ok || app == "" {
			return "", "", false
		}
		return app, title, true
	}
}
