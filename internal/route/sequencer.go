// Package route orders a technician's stops into a visit sequence.
//
// The sequencer is a greedy nearest-neighbour heuristic with an emergency
// prefix. It is deterministic and O(n²) in the number of stops, which is fine
// for a technician's day (tens of stops); above LargeRouteThreshold callers
// should flag the plan.
package route

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
)

// LargeRouteThreshold is the stop count above which sequencing cost is worth reporting.
const LargeRouteThreshold = 100

// Leg is one hop of a plan, ending at StopID.
type Leg struct {
	StopID uuid.UUID  `json:"stop_id"`
	To     geo.LatLng `json:"to"`
	Miles  float64    `json:"miles"`
}

// Plan is the output of Sequence. StopIDs is always a permutation of the
// input stop IDs.
type Plan struct {
	Start      geo.LatLng  `json:"start"`
	StopIDs    []uuid.UUID `json:"stop_ids"`
	Legs       []Leg       `json:"legs"`
	TotalMiles float64     `json:"total_miles"`
}

// Sequence orders stops starting from start. EMERGENCY stops come first in
// their input order; the rest follow by repeatedly picking the closest
// unvisited stop to the current position, ties going to the earlier input.
//
// Every coordinate is validated before any ordering happens.
func Sequence(start geo.LatLng, stops []entity.Stop) (Plan, error) {
	if err := start.Validate(); err != nil {
		return Plan{}, errors.Wrap(err, "route start")
	}
	for i, s := range stops {
		if err := s.Location.Validate(); err != nil {
			return Plan{}, errors.Wrapf(err, "stop %d (%s)", i, s.ID)
		}
	}

	plan := Plan{
		Start:   start,
		StopIDs: make([]uuid.UUID, 0, len(stops)),
		Legs:    make([]Leg, 0, len(stops)),
	}

	cursor := start
	visit := func(s entity.Stop) {
		miles := geo.Haversine(cursor, s.Location)
		plan.StopIDs = append(plan.StopIDs, s.ID)
		plan.Legs = append(plan.Legs, Leg{StopID: s.ID, To: s.Location, Miles: miles})
		plan.TotalMiles += miles
		cursor = s.Location
	}

	rest := make([]entity.Stop, 0, len(stops))
	for _, s := range stops {
		if s.Priority == entity.PriorityEmergency {
			visit(s)
			continue
		}
		rest = append(rest, s)
	}

	for len(rest) > 0 {
		best := 0
		bestMiles := geo.Haversine(cursor, rest[0].Location)
		for i := 1; i < len(rest); i++ {
			// strict < keeps the earliest candidate on ties
			if d := geo.Haversine(cursor, rest[i].Location); d < bestMiles {
				best, bestMiles = i, d
			}
		}
		visit(rest[best])
		rest = append(rest[:best], rest[best+1:]...)
	}

	return plan, nil
}

// Order applies a plan's stop order to items keyed by id. Items whose id is
// not in the plan keep their relative order after the sequenced ones.
func Order[T any](plan Plan, items []T, id func(T) uuid.UUID) []T {
	pos := make(map[uuid.UUID]int, len(plan.StopIDs))
	for i, sid := range plan.StopIDs {
		pos[sid] = i
	}

	out := make([]T, len(plan.StopIDs))
	filled := make([]bool, len(plan.StopIDs))
	var tail []T
	for _, it := range items {
		if i, ok := pos[id(it)]; ok && !filled[i] {
			out[i] = it
			filled[i] = true
			continue
		}
		tail = append(tail, it)
	}

	// compact in case the plan named ids that were not among items
	n := 0
	for i := range out {
		if filled[i] {
			out[n] = out[i]
			n++
		}
	}
	return append(out[:n], tail...)
}
