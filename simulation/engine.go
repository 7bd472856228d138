package simulation

import (
	"sort"
	"sync"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"
)

var engineLogger = log.New("pkg", "simulation.engine")

// Options are the tunables that shape a detection run: the network's
// display metadata plus the margin/buffer/mask parameters spec.md §3 and
// §4.5 leave to the caller.
type Options struct {
	Title       string
	Description string
	Version     string

	StationMargin                        time.Duration
	MinimumSeparation                    time.Duration
	IgnoreSameDirectionPlatformConflicts bool
	DaysMask                              DaysOfWeek

	SuggestionsEnabled         bool
	SuggestionsIntervalMinutes int
	SuggestMaxItems            int

	// DetectionIntervalSeconds is the ticker period used by Start/Pause's
	// background re-detection loop; 0 falls back to 60s.
	DetectionIntervalSeconds int
}

// DetectionRun is one immutable snapshot of a conflict-detection pass:
// the journeys it was computed over plus the conflicts/crossings found.
type DetectionRun struct {
	GeneratedAt      time.Time
	Journeys         []*TrainJourney
	Conflicts        []Conflict
	StationCrossings []StationCrossing
	Departures       []Departure
}

// Engine owns a railway Graph and its Lines, and runs the conflict
// detection pipeline (journey expansion -> ConflictContext -> sweep line)
// on demand or on a ticker. It is the aggregate root a server process
// loads, snapshots and restarts, mirroring the role the teacher's
// Simulation struct plays for a live signalling simulation.
type Engine struct {
	mu sync.RWMutex

	Graph   *Graph
	Lines   []*Line
	Options Options

	ctx          *ConflictContext
	stationOrder []NodeIndex

	LastRun     *DetectionRun
	Suggestions *Suggestions

	suggestionEngine *SuggestionEngine
	events           *eventBus

	running bool
	stopCh  chan struct{}
}

// NewEngine wraps a graph and line set. Call Initialize before Detect.
func NewEngine(graph *Graph, lines []*Line, options Options) *Engine {
	return &Engine{
		Graph:   graph,
		Lines:   lines,
		Options: options,
		events:  newEventBus(),
	}
}

// Initialize builds the ConflictContext and suggestion engine from the
// current graph. Call again after structurally editing the graph (adding
// or removing stations/edges) so the context's station ordering and edge
// metadata stay in sync.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Graph == nil {
		e.Graph = NewGraph()
	}

	e.stationOrder = e.stationOrder[:0]
	stationIndices := make(map[NodeIndex]int)
	for i := 0; i < len(e.Graph.nodes); i++ {
		node := e.Graph.Node(NodeIndex(i))
		if node == nil || node.Kind != StationNode {
			continue
		}
		stationIndices[NodeIndex(i)] = len(e.stationOrder)
		e.stationOrder = append(e.stationOrder, NodeIndex(i))
	}

	e.ctx = NewConflictContext(e.Graph, stationIndices, e.Options.StationMargin, e.Options.MinimumSeparation, e.Options.IgnoreSameDirectionPlatformConflicts)
	e.suggestionEngine = NewSuggestionEngine(e)

	engineLogger.Info("engine initialized", "stations", len(e.stationOrder), "lines", len(e.Lines))
	return nil
}

// Detect runs one full journey-expansion + sweep-line pass and records it
// as LastRun. It also regenerates the departure board and, if enabled,
// recomputes suggestions against the new conflicts.
func (e *Engine) Detect() *DetectionRun {
	e.mu.Lock()
	graph, lines, ctx := e.Graph, e.Lines, e.ctx
	stations := append([]NodeIndex(nil), e.stationOrder...)
	mask := e.Options.DaysMask
	e.mu.Unlock()

	e.events.send(&Event{Name: DetectionStartedEvent})

	journeys := GenerateJourneys(lines, graph, mask)
	conflicts, crossings := DetectConflicts(journeys, ctx)
	departures := GenerateDepartures(lines, graph, stations, GenerationWindowStart, GenerationWindowEnd)

	run := &DetectionRun{
		GeneratedAt:      time.Now(),
		Journeys:         journeys,
		Conflicts:        conflicts,
		StationCrossings: crossings,
		Departures:       departures,
	}

	e.mu.Lock()
	e.LastRun = run
	e.mu.Unlock()

	engineLogger.Info("detection run complete", "journeys", len(journeys), "conflicts", len(conflicts), "crossings", len(crossings))
	e.events.send(&Event{Name: DetectionCompletedEvent, Object: run})

	if e.Options.SuggestionsEnabled {
		e.RecomputeSuggestions()
	}

	return run
}

// RecomputeSuggestions regenerates Suggestions from LastRun's conflicts.
func (e *Engine) RecomputeSuggestions() {
	e.mu.Lock()
	se := e.suggestionEngine
	e.mu.Unlock()
	if se == nil {
		return
	}
	se.Recompute()
}

// AcceptSuggestion records acceptance of the named suggestion and removes it
// from Suggestions; the schedule itself is not changed.
func (e *Engine) AcceptSuggestion(id string) error {
	e.mu.RLock()
	se := e.suggestionEngine
	e.mu.RUnlock()
	if se == nil {
		return errNoEngine
	}
	err := se.Accept(id)
	e.events.send(&Event{Name: SuggestionAcceptedEvent, Object: id})
	return err
}

// RejectSuggestion suppresses the named suggestion for minutes.
func (e *Engine) RejectSuggestion(id string, minutes int) {
	e.mu.RLock()
	se := e.suggestionEngine
	e.mu.RUnlock()
	if se == nil {
		return
	}
	se.Reject(id, minutes)
	e.events.send(&Event{Name: SuggestionRejectedEvent, Object: id})
}

// Subscribe returns a channel of events broadcast by this engine. Callers
// must Unsubscribe when done.
func (e *Engine) Subscribe() chan *Event { return e.events.subscribe() }

// Unsubscribe stops delivery to ch and closes it.
func (e *Engine) Unsubscribe(ch chan *Event) { e.events.unsubscribe(ch) }

// IsStarted reports whether the background re-detection ticker is running.
func (e *Engine) IsStarted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Start begins a background ticker that re-runs Detect periodically. It is
// a no-op if already started.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	interval := time.Duration(e.Options.DetectionIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Detect()
			case <-stopCh:
				return
			}
		}
	}()
}

// Pause stops the background re-detection ticker.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stopCh)
}

// StationOrder returns the display ordering of station node indices used to
// build the ConflictContext's ordinal axis.
func (e *Engine) StationOrder() []NodeIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]NodeIndex(nil), e.stationOrder...)
}

// sortedStationNames returns the names of the stations in the display
// ordering, sorted alphabetically.
func (e *Engine) sortedStationNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.stationOrder))
	for _, idx := range e.stationOrder {
		if name, ok := e.Graph.StationName(idx); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
