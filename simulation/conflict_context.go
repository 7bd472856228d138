package simulation

import "time"

// EdgeInfo is the per-edge metadata the detector needs, frozen into a
// ConflictContext at build time (spec.md §4.3).
type EdgeInfo struct {
	IsSingleTrackBidirectional bool
	TrackCount                 int
}

// ConflictContext is a frozen, serialisable snapshot of the graph used by
// the detector, decoupled from the live Graph so that detection can run on
// a worker goroutine without sharing mutable state (spec.md §4.3, §5).
type ConflictContext struct {
	// StationIndices maps a node index to its dense display ordinal.
	StationIndices map[NodeIndex]int

	// EdgeInfoByIndex maps an edge index to its EdgeInfo.
	EdgeInfoByIndex map[EdgeIndex]EdgeInfo

	// TrackDirections maps (edge, track) to whether that track is
	// bidirectional.
	TrackDirections map[trackKey]bool

	// Junctions is the set of node indices that are junctions.
	Junctions map[NodeIndex]bool

	StationMarginSecs                   float64
	MinimumSeparationSecs                float64
	IgnoreSameDirectionPlatformConflicts bool
}

type trackKey struct {
	Edge  EdgeIndex
	Track int
}

// SerializableConflictContext is the wire form of ConflictContext: plain
// slices instead of maps keyed by non-string types, suitable for JSON
// encoding across a process boundary (spec.md §4.3, §5: "ConflictContext
// is explicitly serialisable for this reason").
type SerializableConflictContext struct {
	StationIndices []StationIndexEntry `json:"station_indices"`
	EdgeInfo       []EdgeInfoEntry      `json:"edge_info"`
	TrackDirections []TrackDirectionEntry `json:"track_directions"`
	Junctions      []NodeIndex          `json:"junctions"`

	StationMarginSecs                    float64 `json:"station_margin_secs"`
	MinimumSeparationSecs                 float64 `json:"minimum_separation_secs"`
	IgnoreSameDirectionPlatformConflicts  bool    `json:"ignore_same_direction_platform_conflicts"`
}

type StationIndexEntry struct {
	Node    NodeIndex `json:"node"`
	Ordinal int       `json:"ordinal"`
}

type EdgeInfoEntry struct {
	Edge                       EdgeIndex `json:"edge"`
	IsSingleTrackBidirectional bool      `json:"is_single_track_bidirectional"`
	TrackCount                 int       `json:"track_count"`
}

type TrackDirectionEntry struct {
	Edge          EdgeIndex `json:"edge"`
	Track         int       `json:"track"`
	IsBidirectional bool    `json:"is_bidirectional"`
}

// NewConflictContext builds the snapshot described in spec.md §4.3 from a
// live graph and the caller-controlled station display ordering.
func NewConflictContext(graph *Graph, stationIndices map[NodeIndex]int, stationMargin, minimumSeparation time.Duration, ignoreSameDirection bool) *ConflictContext {
	ctx := &ConflictContext{
		StationIndices:         make(map[NodeIndex]int, len(stationIndices)),
		EdgeInfoByIndex:        make(map[EdgeIndex]EdgeInfo),
		TrackDirections:        make(map[trackKey]bool),
		Junctions:              make(map[NodeIndex]bool),
		StationMarginSecs:      stationMargin.Seconds(),
		MinimumSeparationSecs:  minimumSeparation.Seconds(),
		IgnoreSameDirectionPlatformConflicts: ignoreSameDirection,
	}
	for node, ordinal := range stationIndices {
		ctx.StationIndices[node] = ordinal
	}

	for edgeIdx := 0; edgeIdx < len(graph.edges); edgeIdx++ {
		seg := graph.Edge(EdgeIndex(edgeIdx))
		if seg == nil {
			continue
		}
		ctx.EdgeInfoByIndex[EdgeIndex(edgeIdx)] = EdgeInfo{
			IsSingleTrackBidirectional: seg.IsSingleTrackBidirectional(),
			TrackCount:                 len(seg.Tracks),
		}
		for trackIdx, track := range seg.Tracks {
			ctx.TrackDirections[trackKey{Edge: EdgeIndex(edgeIdx), Track: trackIdx}] = track.Direction == Bidirectional
		}
	}

	for nodeIdx := 0; nodeIdx < len(graph.nodes); nodeIdx++ {
		if graph.IsJunction(NodeIndex(nodeIdx)) {
			ctx.Junctions[NodeIndex(nodeIdx)] = true
		}
	}

	return ctx
}

// IsSingleTrackBidirectional reports whether edge is a single-track block.
func (c *ConflictContext) IsSingleTrackBidirectional(edge EdgeIndex) bool {
	return c.EdgeInfoByIndex[edge].IsSingleTrackBidirectional
}

// IsTrackBidirectional reports whether (edge, track) is bidirectional.
func (c *ConflictContext) IsTrackBidirectional(edge EdgeIndex, track int) bool {
	return c.TrackDirections[trackKey{Edge: edge, Track: track}]
}

// IsJunction reports whether node is a junction.
func (c *ConflictContext) IsJunction(node NodeIndex) bool {
	return c.Junctions[node]
}

// Serializable converts c into its wire form.
func (c *ConflictContext) Serializable() SerializableConflictContext {
	out := SerializableConflictContext{
		StationMarginSecs:                    c.StationMarginSecs,
		MinimumSeparationSecs:                c.MinimumSeparationSecs,
		IgnoreSameDirectionPlatformConflicts: c.IgnoreSameDirectionPlatformConflicts,
	}
	for node, ord := range c.StationIndices {
		out.StationIndices = append(out.StationIndices, StationIndexEntry{Node: node, Ordinal: ord})
	}
	for edge, info := range c.EdgeInfoByIndex {
		out.EdgeInfo = append(out.EdgeInfo, EdgeInfoEntry{Edge: edge, IsSingleTrackBidirectional: info.IsSingleTrackBidirectional, TrackCount: info.TrackCount})
	}
	for key, bidir := range c.TrackDirections {
		out.TrackDirections = append(out.TrackDirections, TrackDirectionEntry{Edge: key.Edge, Track: key.Track, IsBidirectional: bidir})
	}
	for node := range c.Junctions {
		out.Junctions = append(out.Junctions, node)
	}
	return out
}

// FromSerializable rebuilds a ConflictContext from its wire form, e.g. on
// the receiving side of a worker boundary.
func FromSerializable(s SerializableConflictContext) *ConflictContext {
	ctx := &ConflictContext{
		StationIndices:        make(map[NodeIndex]int, len(s.StationIndices)),
		EdgeInfoByIndex:       make(map[EdgeIndex]EdgeInfo, len(s.EdgeInfo)),
		TrackDirections:       make(map[trackKey]bool, len(s.TrackDirections)),
		Junctions:             make(map[NodeIndex]bool, len(s.Junctions)),
		StationMarginSecs:     s.StationMarginSecs,
		MinimumSeparationSecs: s.MinimumSeparationSecs,
		IgnoreSameDirectionPlatformConflicts: s.IgnoreSameDirectionPlatformConflicts,
	}
	for _, e := range s.StationIndices {
		ctx.StationIndices[e.Node] = e.Ordinal
	}
	for _, e := range s.EdgeInfo {
		ctx.EdgeInfoByIndex[e.Edge] = EdgeInfo{IsSingleTrackBidirectional: e.IsSingleTrackBidirectional, TrackCount: e.TrackCount}
	}
	for _, e := range s.TrackDirections {
		ctx.TrackDirections[trackKey{Edge: e.Edge, Track: e.Track}] = e.IsBidirectional
	}
	for _, n := range s.Junctions {
		ctx.Junctions[n] = true
	}
	return ctx
}
