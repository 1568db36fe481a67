// Package tracker implements the desktop agent: it samples the
// foreground window on an interval, turns (app, title)
// transitions into completed sessions, and reports them to the
// usage server. Platform window enumeration is injected as a
// SampleFunc so the state machine stays testable everywhere.
package tracker

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Sample is one completed foreground-window session.
type Sample struct {
	AppName     string
	WindowTitle string
	Duration    int64 // whole seconds
	StartedAt   time.Time
}

// SampleFunc returns the current foreground window. ok is false
// when no window is available (desktop, lock screen, or the
// sample source is exhausted).
type SampleFunc func() (app, title string, ok bool)

// Reporter is the server-facing side of the tracker.
type Reporter interface {
	Report(ctx context.Context, s Sample) error
	FetchIdentifiers(ctx context.Context) (Snapshot, error)
}

// sendBuffer bounds how many completed sessions can wait on a
// slow network before the tracker starts dropping.
const sendBuffer = 64

// Tracker runs the sampling loop.
type Tracker struct {
	sample   SampleFunc
	reporter Reporter
	poll     time.Duration
	refresh  time.Duration

	snap    atomic.Pointer[Snapshot]
	samples chan Sample

	// current open session; zero curApp means none.
	curApp    string
	curTitle  string
	startedAt time.Time
}

// New creates a Tracker that samples via sample every
// pollInterval and refreshes the allow-list every
// refreshInterval.
func New(
	sample SampleFunc, reporter Reporter,
	pollInterval, refreshInterval time.Duration,
) *Tracker {
	t := &Tracker{
		sample:   sample,
		reporter: reporter,
		poll:     pollInterval,
		refresh:  refreshInterval,
		samples:  make(chan Sample, sendBuffer),
	}
	empty := NewSnapshot(nil)
	t.snap.Store(&empty)
	return t
}

// Run samples until ctx is canceled. The final open session is
// flushed on the way out.
func (t *Tracker) Run(ctx context.Context) error {
	// All network I/O runs apart from sampling: a slow POST or
	// a hanging registry fetch never delays the next poll tick.
	refreshDone := make(chan struct{})
	go t.refreshLoop(ctx, refreshDone)
	senderDone := make(chan struct{})
	go t.sender(ctx, senderDone)

	pollTick := time.NewTicker(t.poll)
	defer pollTick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.closeSession(time.Now())
			close(t.samples)
			<-senderDone
			<-refreshDone
			return ctx.Err()
		case now := <-pollTick.C:
			t.step(now)
		}
	}
}

// refreshLoop fetches the allow-list once at startup and then on
// every refresh tick. The snapshot pointer swap is atomic, so the
// sampling loop reads it without coordination.
func (t *Tracker) refreshLoop(
	ctx context.Context, done chan<- struct{},
) {
	defer close(done)
	t.refreshSnapshot(ctx)

	tick := time.NewTicker(t.refresh)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.refreshSnapshot(ctx)
		}
	}
}

// step advances the transition state machine by one poll tick.
func (t *Tracker) step(now time.Time) {
	app, title, ok := t.sample()
	if !ok {
		t.closeSession(now)
		return
	}
	title = CleanTitle(app, title)
	if app == t.curApp && title == t.curTitle {
		return
	}
	t.closeSession(now)
	t.curApp = app
	t.curTitle = title
	t.startedAt = now
}

// closeSession emits the open session, if any, and clears it.
func (t *Tracker) closeSession(now time.Time) {
	if t.curApp == "" {
		return
	}
	s := Sample{
		AppName:     t.curApp,
		WindowTitle: t.curTitle,
		Duration:    int64(now.Sub(t.startedAt).Seconds()),
		StartedAt:   t.startedAt,
	}
	t.curApp = ""
	t.curTitle = ""

	if s.Duration <= 0 {
		return
	}
	if !t.snap.Load().Tracks(s.AppName, s.WindowTitle) {
		return
	}
	select {
	case t.samples <- s:
	default:
		log.Printf("tracker: send buffer full, dropping %s (%s)",
			s.AppName, s.WindowTitle)
	}
}

// sender drains the sample channel. Failed posts are logged and
// dropped: the server's date-bucket upsert tolerates gaps, and
// retrying a session would risk double-counting it.
func (t *Tracker) sender(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for s := range t.samples {
		// Sends race shutdown; give each its own deadline
		// detached from the loop context.
		sendCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx), 10*time.Second,
		)
		if err := t.reporter.Report(sendCtx, s); err != nil {
			log.Printf("tracker: reporting %s (%s): %v",
				s.AppName, s.WindowTitle, err)
		}
		cancel()
	}
}

func (t *Tracker) refreshSnapshot(ctx context.Context) {
	snap, err := t.reporter.FetchIdentifiers(ctx)
	if err != nil {
		// Keep the previous snapshot; a registry outage must
		// not stop tracking.
		log.Printf("tracker: refreshing identifiers: %v", err)
		return
	}
	t.snap.Store(&snap)
	log.Printf("tracker: allow-list refreshed (%d identifiers)",
		snap.Len())
}
