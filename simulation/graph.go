package simulation

import log "gopkg.in/inconshreveable/log15.v2"

var graphLogger = log.New("pkg", "simulation.graph")

// NodeIndex identifies a node (station or junction) in a Graph. RemoveNode
// never renumbers other nodes: the slot is tombstoned instead (and reused
// by the next added node), so that references captured elsewhere (routes,
// ConflictContext) remain valid across unrelated mutations.
type NodeIndex int

// EdgeIndex identifies an edge (track segment) in a Graph, with the same
// stability guarantee as NodeIndex.
type EdgeIndex int

// TrackDirection is the direction of travel a Track supports.
type TrackDirection int

const (
	Bidirectional TrackDirection = iota
	Forward                      // source -> target only
	Backward                     // target -> source only
)

// Track is one physical track within a TrackSegment.
type Track struct {
	Direction TrackDirection
}

// Platform is a named slot at a Station where a train can stop.
type Platform struct {
	Name string
}

// Position is an optional 2-D layout position for a station, carried
// through for consumers (layout/rendering) that are out of scope here.
type Position struct {
	X, Y float64
}

// Station is a node with platforms where trains stop.
type Station struct {
	Name        string
	ExternalID  string
	Position    *Position
	PassingLoop bool
	Platforms   []Platform
}

// RoutingRule explicitly allows or denies transit from FromEdge to ToEdge
// through a Junction. Absence of a rule for a pair means "allowed" (the
// default-allow semantics described in spec.md §3).
type RoutingRule struct {
	FromEdge EdgeIndex
	ToEdge   EdgeIndex
	Allowed  bool
}

// Junction is a node with no platforms representing a track convergence.
type Junction struct {
	Name  string
	Rules []RoutingRule
}

// NodeKind distinguishes the two node variants a Graph can hold.
type NodeKind int

const (
	StationNode NodeKind = iota
	JunctionNode
)

// Node is the tagged union of the two node variants. Exactly one of
// Station/Junction is non-nil, matching Kind.
type Node struct {
	Kind     NodeKind
	Station  *Station
	Junction *Junction
}

// TrackSegment is an edge: an ordered list of tracks plus optional distance
// and default platform bindings for its endpoints.
type TrackSegment struct {
	Tracks                []Track
	Distance              *float64
	SourceDefaultPlatform *int
	TargetDefaultPlatform *int
}

// NewSingleTrack returns a segment with one bidirectional track — the
// "single-track block" case.
func NewSingleTrack() TrackSegment {
	return TrackSegment{Tracks: []Track{{Direction: Bidirectional}}}
}

// NewDoubleTrack returns a segment with a forward and a backward track.
func NewDoubleTrack() TrackSegment {
	return TrackSegment{Tracks: []Track{{Direction: Forward}, {Direction: Backward}}}
}

// IsSingleTrackBidirectional reports whether this segment is exactly one
// bidirectional track.
func (s TrackSegment) IsSingleTrackBidirectional() bool {
	return len(s.Tracks) == 1 && s.Tracks[0].Direction == Bidirectional
}

type edge struct {
	From, To NodeIndex
	Segment  TrackSegment
}

// Graph is a stable, sparse directed multigraph of Station/Junction nodes
// connected by multi-track edges. Node and edge indices remain valid across
// unrelated removals — removed slots are tombstoned (nil) and kept on a free
// list, from which the next AddStation/AddJunction/AddEdge reuses them.
type Graph struct {
	nodes    []*Node
	edges    []*edge
	nodeFree []NodeIndex
	edgeFree []EdgeIndex

	stationNameToIndex map[string]NodeIndex
	outEdges           map[NodeIndex][]EdgeIndex
	inEdges            map[NodeIndex][]EdgeIndex
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		stationNameToIndex: make(map[string]NodeIndex),
		outEdges:           make(map[NodeIndex][]EdgeIndex),
		inEdges:            make(map[NodeIndex][]EdgeIndex),
	}
}

// AddStation inserts a station node and returns its index.
func (g *Graph) AddStation(s *Station) NodeIndex {
	idx := g.allocNode(&Node{Kind: StationNode, Station: s})
	if s.Name != "" {
		g.stationNameToIndex[s.Name] = idx
	}
	return idx
}

// AddJunction inserts a junction node and returns its index.
func (g *Graph) AddJunction(j *Junction) NodeIndex {
	return g.allocNode(&Node{Kind: JunctionNode, Junction: j})
}

func (g *Graph) allocNode(n *Node) NodeIndex {
	if len(g.nodeFree) > 0 {
		idx := g.nodeFree[len(g.nodeFree)-1]
		g.nodeFree = g.nodeFree[:len(g.nodeFree)-1]
		g.nodes[idx] = n
		return idx
	}
	g.nodes = append(g.nodes, n)
	return NodeIndex(len(g.nodes) - 1)
}

// RemoveNode tombstones a node slot. Existing edge/route references to
// other nodes remain valid; edges touching this node are left dangling and
// are skipped by consumers that guard on (*Graph).Node returning nil.
func (g *Graph) RemoveNode(idx NodeIndex) {
	if !g.validNode(idx) {
		return
	}
	if n := g.nodes[idx]; n.Kind == StationNode && n.Station != nil {
		delete(g.stationNameToIndex, n.Station.Name)
	}
	g.nodes[idx] = nil
	g.nodeFree = append(g.nodeFree, idx)
}

func (g *Graph) validNode(idx NodeIndex) bool {
	return idx >= 0 && int(idx) < len(g.nodes) && g.nodes[idx] != nil
}

func (g *Graph) validEdge(idx EdgeIndex) bool {
	return idx >= 0 && int(idx) < len(g.edges) && g.edges[idx] != nil
}

// Node returns the node at idx, or nil if the slot is empty/tombstoned/out
// of range.
func (g *Graph) Node(idx NodeIndex) *Node {
	if !g.validNode(idx) {
		return nil
	}
	return g.nodes[idx]
}

// AddEdge inserts a track segment between from and to, returning its
// index. The segment must carry at least one track (spec.md invariant);
// callers violating that get a single bidirectional track substituted, and
// a warning is logged rather than panicking.
func (g *Graph) AddEdge(from, to NodeIndex, segment TrackSegment) EdgeIndex {
	if len(segment.Tracks) == 0 {
		graphLogger.Warn("edge with no tracks, defaulting to single bidirectional track", "from", from, "to", to)
		segment.Tracks = []Track{{Direction: Bidirectional}}
	}

	var idx EdgeIndex
	e := &edge{From: from, To: to, Segment: segment}
	if len(g.edgeFree) > 0 {
		idx = g.edgeFree[len(g.edgeFree)-1]
		g.edgeFree = g.edgeFree[:len(g.edgeFree)-1]
		g.edges[idx] = e
	} else {
		g.edges = append(g.edges, e)
		idx = EdgeIndex(len(g.edges) - 1)
	}

	g.outEdges[from] = append(g.outEdges[from], idx)
	g.inEdges[to] = append(g.inEdges[to], idx)
	return idx
}

// RemoveEdge tombstones an edge slot.
func (g *Graph) RemoveEdge(idx EdgeIndex) {
	if !g.validEdge(idx) {
		return
	}
	e := g.edges[idx]
	g.outEdges[e.From] = removeEdgeIdx(g.outEdges[e.From], idx)
	g.inEdges[e.To] = removeEdgeIdx(g.inEdges[e.To], idx)
	g.edges[idx] = nil
	g.edgeFree = append(g.edgeFree, idx)
}

func removeEdgeIdx(s []EdgeIndex, target EdgeIndex) []EdgeIndex {
	for i, v := range s {
		if v == target {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// Edge returns the track segment at idx, or nil if invalid.
func (g *Graph) Edge(idx EdgeIndex) *TrackSegment {
	if !g.validEdge(idx) {
		return nil
	}
	return &g.edges[idx].Segment
}

// GetTrackEndpoints returns the (from, to) node indices of edge.
func (g *Graph) GetTrackEndpoints(edge EdgeIndex) (from, to NodeIndex, ok bool) {
	if !g.validEdge(edge) {
		return 0, 0, false
	}
	e := g.edges[edge]
	return e.From, e.To, true
}

// FindEdge returns the first edge connecting a and b, in either direction
// (unordered lookup).
func (g *Graph) FindEdge(a, b NodeIndex) (EdgeIndex, bool) {
	for _, idx := range g.outEdges[a] {
		if e := g.edges[idx]; e != nil && e.To == b {
			return idx, true
		}
	}
	for _, idx := range g.outEdges[b] {
		if e := g.edges[idx]; e != nil && e.To == a {
			return idx, true
		}
	}
	return 0, false
}

// SelectTrackForDirection returns the index of the first track on edge
// compatible with travel in the requested direction. A backward traveller
// needs Backward or Bidirectional; a forward traveller needs Forward or
// Bidirectional. Falls back to track 0 when nothing matches — callers are
// expected to have validated routes upstream (spec.md §4.2).
func (g *Graph) SelectTrackForDirection(edge EdgeIndex, travelingBackward bool) int {
	seg := g.Edge(edge)
	if seg == nil || len(seg.Tracks) == 0 {
		return 0
	}
	for i, t := range seg.Tracks {
		if travelingBackward {
			if t.Direction == Backward || t.Direction == Bidirectional {
				return i
			}
		} else {
			if t.Direction == Forward || t.Direction == Bidirectional {
				return i
			}
		}
	}
	return 0
}

// IsJunction reports whether node is a junction (and hence has no
// platforms, per spec.md §4.2).
func (g *Graph) IsJunction(node NodeIndex) bool {
	n := g.Node(node)
	return n != nil && n.Kind == JunctionNode
}

// StationName returns the station name at node, if it is a station.
func (g *Graph) StationName(node NodeIndex) (string, bool) {
	n := g.Node(node)
	if n == nil || n.Kind != StationNode || n.Station == nil {
		return "", false
	}
	return n.Station.Name, true
}

// StationIndex looks up a station's node index by name.
func (g *Graph) StationIndex(name string) (NodeIndex, bool) {
	idx, ok := g.stationNameToIndex[name]
	return idx, ok
}

// IsTrackBidirectional reports whether the track at (edge, trackIndex) is
// bidirectional.
func (g *Graph) IsTrackBidirectional(edge EdgeIndex, trackIndex int) bool {
	seg := g.Edge(edge)
	if seg == nil || trackIndex < 0 || trackIndex >= len(seg.Tracks) {
		return false
	}
	return seg.Tracks[trackIndex].Direction == Bidirectional
}

// TrackCount returns the number of tracks on edge, or 0 if edge is invalid.
func (g *Graph) TrackCount(edge EdgeIndex) int {
	seg := g.Edge(edge)
	if seg == nil {
		return 0
	}
	return len(seg.Tracks)
}

// ValidateJunctionTransit reports whether travel from fromEdge to toEdge
// through junction is permitted: default-allow unless an explicit rule for
// that pair denies it (spec.md §3, "by default, any through-path is
// allowed; the ruleset overrides on a per-pair basis").
func (g *Graph) ValidateJunctionTransit(junction NodeIndex, fromEdge, toEdge EdgeIndex) bool {
	n := g.Node(junction)
	if n == nil || n.Kind != JunctionNode || n.Junction == nil {
		return true
	}
	for _, rule := range n.Junction.Rules {
		if rule.FromEdge == fromEdge && rule.ToEdge == toEdge {
			return rule.Allowed
		}
	}
	return true
}
