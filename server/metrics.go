package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/railgraph/conflict-engine/simulation"
)

// kpiSnapshot is one point-in-time rollup of conflict-detection history,
// adapted from the teacher's live-train kpiSnapshot to the batch-detection
// domain: there is no train position or signal state to sample, only the
// accumulated record of detection runs and suggestion responses.
type kpiSnapshot struct {
	ts time.Time

	totalConflicts    int
	openConflicts     int
	averageDelayProxy float64
	mttrConflict      float64
	acceptanceRate    float64
	conflictsPerRun   float64
	crossingsPerRun   float64
}

// metricsState accumulates detection-run history under a single mutex, the
// same shape as the teacher's metricsState but keyed off DetectionRun
// instead of live simulation events.
type metricsState struct {
	mu sync.RWMutex

	runs int

	conflictFirstSeen map[string]time.Time
	resolutionDurations []time.Duration

	totalConflictsSeen int
	totalCrossingsSeen int
	timingUncertainSeen int
	conflictsSeenForAvg int

	accepted []time.Time
	rejected []time.Time

	snapshots []kpiSnapshot
}

var metrics = &metricsState{conflictFirstSeen: make(map[string]time.Time)}

// conflictKey identifies the same conflict across successive runs so its
// open/close duration can be tracked (a conflict "opens" the run it first
// appears for a given journey pair + segment, "closes" when a later run no
// longer reproduces it).
func conflictKey(c simulation.Conflict) string {
	edge := "platform"
	if c.EdgeIndex != nil {
		edge = fmt.Sprintf("edge:%d", *c.EdgeIndex)
	} else if c.PlatformIdx != nil {
		edge = fmt.Sprintf("platform:%d", *c.PlatformIdx)
	}
	j1, j2 := c.Journey1ID, c.Journey2ID
	if j2 < j1 {
		j1, j2 = j2, j1
	}
	return fmt.Sprintf("%s|%s|%s|%s", j1, j2, c.Type, edge)
}

// updateMetrics folds one DetectionRun into the rolling history. Called
// from the engine event subscriber installed by Run.
func updateMetrics(run *simulation.DetectionRun) {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	now := time.Now().UTC()
	metrics.runs++

	newSet := make(map[string]bool, len(run.Conflicts))
	uncertain := 0
	for _, c := range run.Conflicts {
		key := conflictKey(c)
		newSet[key] = true
		if c.TimingUncertain {
			uncertain++
		}
		if _, ok := metrics.conflictFirstSeen[key]; !ok {
			metrics.conflictFirstSeen[key] = now
		}
	}
	for key, first := range metrics.conflictFirstSeen {
		if !newSet[key] {
			metrics.resolutionDurations = append(metrics.resolutionDurations, now.Sub(first))
			delete(metrics.conflictFirstSeen, key)
		}
	}
	if len(metrics.resolutionDurations) > 500 {
		metrics.resolutionDurations = metrics.resolutionDurations[len(metrics.resolutionDurations)-500:]
	}

	metrics.totalConflictsSeen += len(run.Conflicts)
	metrics.totalCrossingsSeen += len(run.StationCrossings)
	metrics.timingUncertainSeen += uncertain
	metrics.conflictsSeenForAvg += len(run.Conflicts)
}

// recordSuggestionResponse tracks accept/reject events for the acceptance
// rate KPI.
func recordSuggestionResponse(accepted bool) {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	now := time.Now().UTC()
	if accepted {
		metrics.accepted = append(metrics.accepted, now)
	} else {
		metrics.rejected = append(metrics.rejected, now)
	}
}

func takeSnapshot() {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	avgDelayProxy := 0.0
	if metrics.conflictsSeenForAvg > 0 {
		avgDelayProxy = float64(metrics.timingUncertainSeen) / float64(metrics.conflictsSeenForAvg)
	}

	mttr := 0.0
	if len(metrics.resolutionDurations) > 0 {
		var sum time.Duration
		for _, d := range metrics.resolutionDurations {
			sum += d
		}
		mttr = sum.Minutes() / float64(len(metrics.resolutionDurations))
	}

	accRate := 0.0
	totalResponses := len(metrics.accepted) + len(metrics.rejected)
	if totalResponses > 0 {
		accRate = float64(len(metrics.accepted)) * 100.0 / float64(totalResponses)
	}

	conflictsPerRun, crossingsPerRun := 0.0, 0.0
	if metrics.runs > 0 {
		conflictsPerRun = float64(metrics.totalConflictsSeen) / float64(metrics.runs)
		crossingsPerRun = float64(metrics.totalCrossingsSeen) / float64(metrics.runs)
	}

	snap := kpiSnapshot{
		ts:                time.Now().UTC(),
		totalConflicts:    metrics.totalConflictsSeen,
		openConflicts:     len(metrics.conflictFirstSeen),
		averageDelayProxy: avgDelayProxy,
		mttrConflict:      mttr,
		acceptanceRate:    accRate,
		conflictsPerRun:   conflictsPerRun,
		crossingsPerRun:   crossingsPerRun,
	}
	metrics.snapshots = append(metrics.snapshots, snap)
	if len(metrics.snapshots) > 1440 {
		metrics.snapshots = metrics.snapshots[len(metrics.snapshots)-1440:]
	}
}

// startMetricsTicker takes a KPI snapshot every 60 seconds, matching the
// teacher's cadence. Snapshots follow the ticker, not detection runs: when
// runs are sparser than that, consecutive snapshots repeat the same totals.
func startMetricsTicker() {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		for range ticker.C {
			takeSnapshot()
		}
	}()
}

func aggregateKPIs(rangeDur time.Duration) (kpiSnapshot, kpiSnapshot) {
	metrics.mu.RLock()
	defer metrics.mu.RUnlock()
	if len(metrics.snapshots) == 0 {
		return kpiSnapshot{ts: time.Now().UTC()}, kpiSnapshot{}
	}

	cutoff := time.Now().UTC().Add(-rangeDur)
	var agg kpiSnapshot
	aggCount := 0
	for _, s := range metrics.snapshots {
		if s.ts.Before(cutoff) {
			continue
		}
		agg.totalConflicts += s.totalConflicts
		agg.openConflicts += s.openConflicts
		agg.averageDelayProxy += s.averageDelayProxy
		agg.mttrConflict += s.mttrConflict
		agg.acceptanceRate += s.acceptanceRate
		agg.conflictsPerRun += s.conflictsPerRun
		agg.crossingsPerRun += s.crossingsPerRun
		aggCount++
	}
	if aggCount > 0 {
		agg.averageDelayProxy /= float64(aggCount)
		agg.mttrConflict /= float64(aggCount)
		agg.acceptanceRate /= float64(aggCount)
		agg.conflictsPerRun /= float64(aggCount)
		agg.crossingsPerRun /= float64(aggCount)
	}

	if len(metrics.snapshots) < 10 {
		return agg, kpiSnapshot{}
	}
	n := len(metrics.snapshots)
	w := n / 10
	if w < 1 {
		w = 1
	}
	cur := averageSlice(metrics.snapshots[n-w:])
	prev := averageSlice(metrics.snapshots[maxInt(0, n-2*w):n-w])
	trend := kpiSnapshot{
		totalConflicts:    cur.totalConflicts - prev.totalConflicts,
		openConflicts:     cur.openConflicts - prev.openConflicts,
		averageDelayProxy: cur.averageDelayProxy - prev.averageDelayProxy,
		mttrConflict:      cur.mttrConflict - prev.mttrConflict,
		acceptanceRate:    cur.acceptanceRate - prev.acceptanceRate,
		conflictsPerRun:   cur.conflictsPerRun - prev.conflictsPerRun,
		crossingsPerRun:   cur.crossingsPerRun - prev.crossingsPerRun,
	}
	return agg, trend
}

func averageSlice(ss []kpiSnapshot) kpiSnapshot {
	var a kpiSnapshot
	if len(ss) == 0 {
		return a
	}
	for _, s := range ss {
		a.totalConflicts += s.totalConflicts
		a.openConflicts += s.openConflicts
		a.averageDelayProxy += s.averageDelayProxy
		a.mttrConflict += s.mttrConflict
		a.acceptanceRate += s.acceptanceRate
		a.conflictsPerRun += s.conflictsPerRun
		a.crossingsPerRun += s.crossingsPerRun
	}
	n := float64(len(ss))
	a.averageDelayProxy /= n
	a.mttrConflict /= n
	a.acceptanceRate /= n
	a.conflictsPerRun /= n
	a.crossingsPerRun /= n
	return a
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
