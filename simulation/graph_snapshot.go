package simulation

import "encoding/json"

// NodeSnapshot is the wire form of a Node, tagged by Kind so a JSON decoder
// doesn't need to know which of Station/Junction is populated ahead of time.
type NodeSnapshot struct {
	Kind     string    `json:"kind"` // "station" | "junction"
	Station  *Station  `json:"station,omitempty"`
	Junction *Junction `json:"junction,omitempty"`
}

// EdgeSnapshot is the wire form of an edge.
type EdgeSnapshot struct {
	From    NodeIndex    `json:"from"`
	To      NodeIndex    `json:"to"`
	Segment TrackSegment `json:"segment"`
}

// GraphSnapshot is the wire form of a Graph: dense node/edge arrays with nil
// entries for tombstoned slots, matching the arena's own index space so that
// NodeIndex/EdgeIndex references elsewhere in a snapshot (routes, manual
// departures) stay valid across a round trip.
type GraphSnapshot struct {
	Nodes []*NodeSnapshot `json:"nodes"`
	Edges []*EdgeSnapshot `json:"edges"`
}

// ToSnapshot converts g into its wire form.
func (g *Graph) ToSnapshot() GraphSnapshot {
	snap := GraphSnapshot{
		Nodes: make([]*NodeSnapshot, len(g.nodes)),
		Edges: make([]*EdgeSnapshot, len(g.edges)),
	}
	for i, n := range g.nodes {
		if n == nil {
			continue
		}
		ns := &NodeSnapshot{Station: n.Station, Junction: n.Junction}
		if n.Kind == StationNode {
			ns.Kind = "station"
		} else {
			ns.Kind = "junction"
		}
		snap.Nodes[i] = ns
	}
	for i, e := range g.edges {
		if e == nil {
			continue
		}
		snap.Edges[i] = &EdgeSnapshot{From: e.From, To: e.To, Segment: e.Segment}
	}
	return snap
}

// GraphFromSnapshot rebuilds a Graph from its wire form, preserving the
// snapshot's index space exactly (including tombstoned holes), so that
// NodeIndex/EdgeIndex values captured in Lines remain valid.
func GraphFromSnapshot(snap GraphSnapshot) *Graph {
	g := NewGraph()
	g.nodes = make([]*Node, len(snap.Nodes))
	for i, ns := range snap.Nodes {
		if ns == nil {
			g.nodeFree = append(g.nodeFree, NodeIndex(i))
			continue
		}
		n := &Node{Station: ns.Station, Junction: ns.Junction}
		if ns.Kind == "station" {
			n.Kind = StationNode
			if n.Station != nil && n.Station.Name != "" {
				g.stationNameToIndex[n.Station.Name] = NodeIndex(i)
			}
		} else {
			n.Kind = JunctionNode
		}
		g.nodes[i] = n
	}

	g.edges = make([]*edge, len(snap.Edges))
	for i, es := range snap.Edges {
		if es == nil {
			g.edgeFree = append(g.edgeFree, EdgeIndex(i))
			continue
		}
		e := &edge{From: es.From, To: es.To, Segment: es.Segment}
		g.edges[i] = e
		g.outEdges[es.From] = append(g.outEdges[es.From], EdgeIndex(i))
		g.inEdges[es.To] = append(g.inEdges[es.To], EdgeIndex(i))
	}

	return g
}

// MarshalJSON makes Graph itself encodable, delegating to GraphSnapshot.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ToSnapshot())
}

// UnmarshalJSON rebuilds g in place from a GraphSnapshot.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var snap GraphSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	rebuilt := GraphFromSnapshot(snap)
	*g = *rebuilt
	return nil
}
