package server

import (
	"sync"
	"time"

	"github.com/railgraph/conflict-engine/simulation"
)

// AuditEntry is one recorded operator-visible event: a completed detection
// run, a suggestion accepted/rejected, or a hub command received.
type AuditEntry struct {
	ID        int64                  `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Category  string                 `json:"category"`
	Severity  string                 `json:"severity"`
	Object    string                 `json:"object,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// auditState is a fixed-capacity ring buffer of AuditEntry, with channel
// fan-out for SSE subscribers (adapted from the teacher's auditState: same
// ring-buffer/subscriber mechanics, a different event vocabulary).
type auditState struct {
	mu          sync.RWMutex
	entries     []AuditEntry
	capacity    int
	nextID      int64
	subscribers map[chan AuditEntry]bool
}

var audits = &auditState{}

func init() {
	audits.capacity = 1000
	audits.subscribers = make(map[chan AuditEntry]bool)
}

func (a *auditState) append(event, category, severity, object string, details map[string]interface{}) AuditEntry {
	a.mu.Lock()
	a.nextID++
	entry := AuditEntry{
		ID:        a.nextID,
		Timestamp: time.Now(),
		Event:     event,
		Category:  category,
		Severity:  severity,
		Object:    object,
		Details:   details,
	}
	a.entries = append(a.entries, entry)
	if len(a.entries) > a.capacity {
		a.entries = a.entries[len(a.entries)-a.capacity:]
	}
	subs := make([]chan AuditEntry, 0, len(a.subscribers))
	for ch := range a.subscribers {
		subs = append(subs, ch)
	}
	a.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- entry:
		default:
		}
	}
	return entry
}

func (a *auditState) subscribe() chan AuditEntry {
	ch := make(chan AuditEntry, 32)
	a.mu.Lock()
	a.subscribers[ch] = true
	a.mu.Unlock()
	return ch
}

func (a *auditState) unsubscribe(ch chan AuditEntry) {
	a.mu.Lock()
	if a.subscribers[ch] {
		delete(a.subscribers, ch)
		close(ch)
	}
	a.mu.Unlock()
}

func (a *auditState) getSince(sinceID int64, limit int) []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []AuditEntry
	for _, e := range a.entries {
		if e.ID > sinceID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// recordAuditFromEvent translates an engine Event into an AuditEntry,
// mirroring the teacher's recordAuditFromEvent switch but over this
// domain's event vocabulary (detection runs and suggestion responses)
// instead of live-simulation events (route activation, signal changes).
func recordAuditFromEvent(e *simulation.Event) {
	switch e.Name {
	case simulation.DetectionCompletedEvent:
		run, ok := e.Object.(*simulation.DetectionRun)
		if !ok {
			return
		}
		audits.append("DETECTION_RUN_COMPLETED", "detection", "info", "", map[string]interface{}{
			"journeys":  len(run.Journeys),
			"conflicts": len(run.Conflicts),
			"crossings": len(run.StationCrossings),
		})
	case simulation.SuggestionAcceptedEvent:
		id, _ := e.Object.(string)
		audits.append("SUGGESTION_ACCEPTED", "suggestion", "info", id, nil)
	case simulation.SuggestionRejectedEvent:
		id, _ := e.Object.(string)
		audits.append("SUGGESTION_REJECTED", "suggestion", "info", id, nil)
	case simulation.SuggestionsUpdatedEvent:
		// Recomputation itself is routine; it's not worth an audit entry on
		// every tick, only the accept/reject responses that drove it.
	}
}

// recordHubCommand logs an inbound websocket command for traceability.
func recordHubCommand(object, action string) {
	audits.append("HUB_COMMAND", "hub", "info", object, map[string]interface{}{"action": action})
}
