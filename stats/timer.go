// Package stats implements the dispatcher-thread periodic progress
// reporter of spec §4.F: a 1s ticker that reads camera progress, snapshots
// counters, formats a report through the log package, and enforces the
// max_intervals watchdog spec §9 resolves as "N consecutive unchanged
// intervals". Grounded on the teacher's renderer/stats.go FrameStats
// shape, turned from a post-hoc summary into a live ticking reporter since
// the teacher's GPU tracer polled Tracer.Stats() per row-block rather than
// per second.
package stats

import (
	"bytes"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/corefan/flexrender/log"
	"github.com/corefan/flexrender/work"
)

var logger = log.New("stats")

// Counters is a live snapshot of render progress: the ray produced/killed
// counters plus the camera's scan progress.
type Counters struct {
	work.Counters
	PrimaryProgress float64
}

func (c Counters) equalCounters(o Counters) bool {
	return c.Counters == o.Counters
}

// Timer drives the periodic report and the "N unchanged intervals" render
// watchdog. It runs entirely on the goroutine that calls Tick — the
// dispatcher goroutine, per spec §5's "Suspension points: on the
// dispatcher: timer tick".
type Timer struct {
	Interval     time.Duration
	MaxIntervals int

	ticker          *time.Ticker
	last            Counters
	unchangedTicks  int
	haveLast        bool
}

// NewTimer builds a Timer with the given tick interval and unchanged-
// interval watchdog threshold. MaxIntervals <= 0 disables the watchdog.
func NewTimer(interval time.Duration, maxIntervals int) *Timer {
	return &Timer{Interval: interval, MaxIntervals: maxIntervals}
}

// Start begins the ticker and returns the channel to select on.
func (t *Timer) Start() <-chan time.Time {
	t.ticker = time.NewTicker(t.Interval)
	return t.ticker.C
}

// Stop halts the ticker. Safe to call once rendering has ended.
func (t *Timer) Stop() {
	if t.ticker != nil {
		t.ticker.Stop()
	}
}

// Tick formats and logs a progress report for the given snapshot, and
// returns true if the watchdog has now seen MaxIntervals consecutive
// intervals with unchanged counters, signaling the caller should stop
// rendering even though the camera has not been exhausted.
func (t *Timer) Tick(snapshot Counters) (shouldStop bool) {
	logger.Noticef("progress %.1f%% | produced I=%d L=%d Li=%d | killed I=%d L=%d Li=%d",
		snapshot.PrimaryProgress,
		snapshot.IntersectsProduced, snapshot.IlluminatesProduced, snapshot.LightsProduced,
		snapshot.IntersectsKilled, snapshot.IlluminatesKilled, snapshot.LightsKilled,
	)

	if t.haveLast && snapshot.equalCounters(t.last) {
		t.unchangedTicks++
	} else {
		t.unchangedTicks = 0
	}
	t.last = snapshot
	t.haveLast = true

	if t.MaxIntervals > 0 && t.unchangedTicks >= t.MaxIntervals {
		logger.Warningf("stats watchdog: %d consecutive unchanged intervals, stopping render", t.unchangedTicks)
		return true
	}
	return false
}

// Report renders a final tabular summary of the counters through the log
// package at Notice level, in the teacher's asset/scene "Stats()" style.
func Report(final Counters, loadTime, buildTime, renderTime time.Duration) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Stage", "Metric", "Value"})
	table.Append([]string{"Timing", "Load", loadTime.String()})
	table.Append([]string{"", "Build", buildTime.String()})
	table.Append([]string{"", "Render", renderTime.String()})
	table.Append([]string{"Rays", "Intersects produced/killed", itoa(final.IntersectsProduced) + " / " + itoa(final.IntersectsKilled)})
	table.Append([]string{"", "Illuminates produced/killed", itoa(final.IlluminatesProduced) + " / " + itoa(final.IlluminatesKilled)})
	table.Append([]string{"", "Lights produced/killed", itoa(final.LightsProduced) + " / " + itoa(final.LightsKilled)})
	table.Render()

	logger.Noticef("render statistics\n%s", buf.String())
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
