// Package replay turns an assembled match's zone transfers into labelled
// zones and human-readable play-by-play steps.
package replay

import (
	"sort"

	"github.com/arenastats/arena-stats-go/internal/parser"
)

// ZoneRole is the inferred semantic role of an opaque per-match zone id.
// Zone ids mean nothing across matches; a role mapping is computed once per
// match and read-only afterward.
type ZoneRole string

const (
	ZoneBattlefield     ZoneRole = "Battlefield"
	ZoneStack           ZoneRole = "Stack"
	ZonePlayerLibrary   ZoneRole = "PlayerLibrary"
	ZonePlayerHand      ZoneRole = "PlayerHand"
	ZoneOpponentLibrary ZoneRole = "OpponentLibrary"
	ZoneOpponentHand    ZoneRole = "OpponentHand"
	ZoneGraveyard       ZoneRole = "Graveyard"
	ZoneExile           ZoneRole = "Exile"
)

// stackNetBound is the largest net accumulation a zone may show and still
// qualify as the stack; everything cast eventually leaves it again.
const stackNetBound = 3

// exileNamedArrivalBound is the most named arrivals a leftover zone may
// have and still default to exile.
const exileNamedArrivalBound = 2

// zoneStats aggregates one zone's traffic in a single pass over the
// transfer list.
type zoneStats struct {
	id              int
	arrivals        int
	departures      int
	namedArrivals   int
	namedDepartures int
	anonDepartures  int
	destinations    map[int]int // departure fan-out, to-zone -> count
	origins         map[int]int // arrival fan-in, from-zone -> count
}

func (s *zoneStats) net() int {
	return s.namedArrivals - s.namedDepartures
}

func (s *zoneStats) throughput() int {
	return s.arrivals + s.departures
}

// InferZoneRoles labels each zone id seen in the transfer list with its
// semantic role. The heuristics run as an ordered sequence where each step
// only considers zones not yet labelled by an earlier step: graveyard
// detection needs battlefield and stack fixed, hand detection needs the
// libraries fixed. Deterministic and idempotent: every selection ties break
// on the zone id, never on map iteration order.
func InferZoneRoles(transfers []parser.ZoneTransfer) map[int]ZoneRole {
	stats := aggregateZoneStats(transfers)
	if len(stats) == 0 {
		return map[int]ZoneRole{}
	}

	zoneIDs := make([]int, 0, len(stats))
	for id := range stats {
		zoneIDs = append(zoneIDs, id)
	}
	sort.Ints(zoneIDs)

	labels := make(map[int]ZoneRole)

	labelBattlefield(stats, zoneIDs, labels)
	labelStack(stats, zoneIDs, labels)
	labelOpponentLibrary(stats, zoneIDs, labels)
	labelOpponentHand(transfers, labels)
	labelPlayerLibrary(stats, zoneIDs, labels)
	labelHands(stats, zoneIDs, labels)
	labelGraveyards(stats, zoneIDs, labels)
	labelExile(stats, zoneIDs, labels)

	return labels
}

func aggregateZoneStats(transfers []parser.ZoneTransfer) map[int]*zoneStats {
	stats := make(map[int]*zoneStats)
	get := func(id int) *zoneStats {
		s, ok := stats[id]
		if !ok {
			s = &zoneStats{
				id:           id,
				destinations: make(map[int]int),
				origins:      make(map[int]int),
			}
			stats[id] = s
		}
		return s
	}

	for _, t := range transfers {
		dest := get(t.ToZone)
		dest.arrivals++
		if t.CardGrpID != 0 {
			dest.namedArrivals++
		}
		if t.FromZone == nil {
			// Synthetic token creation: the token arrived from nowhere.
			continue
		}
		dest.origins[*t.FromZone]++

		src := get(*t.FromZone)
		src.departures++
		src.destinations[t.ToZone]++
		if t.CardGrpID != 0 {
			src.namedDepartures++
		} else {
			src.anonDepartures++
		}
	}
	return stats
}

// labelBattlefield picks the zone with the greatest net accumulation of
// named cards; permanents arrive and mostly stay. Ties break on raw
// arrival count, then on the lower zone id.
func labelBattlefield(stats map[int]*zoneStats, zoneIDs []int, labels map[int]ZoneRole) {
	best := -1
	for _, id := range zoneIDs {
		s := stats[id]
		if best == -1 {
			best = id
			continue
		}
		b := stats[best]
		if s.net() > b.net() || (s.net() == b.net() && s.arrivals > b.arrivals) {
			best = id
		}
	}
	if best >= 0 {
		labels[best] = ZoneBattlefield
	}
}

// labelStack picks the highest-throughput zone among those whose net
// accumulation stays near zero: everything that enters the stack leaves it.
func labelStack(stats map[int]*zoneStats, zoneIDs []int, labels map[int]ZoneRole) {
	best := -1
	for _, id := range zoneIDs {
		s := stats[id]
		if _, taken := labels[id]; taken {
			continue
		}
		if abs(s.net()) > stackNetBound {
			continue
		}
		if best == -1 || s.throughput() > stats[best].throughput() {
			best = id
		}
	}
	if best >= 0 {
		labels[best] = ZoneStack
	}
}

// labelOpponentLibrary picks the zone most cards leave anonymously: the
// opponent's draws are invisible to the local client.
func labelOpponentLibrary(stats map[int]*zoneStats, zoneIDs []int, labels map[int]ZoneRole) {
	best := -1
	for _, id := range zoneIDs {
		s := stats[id]
		if _, taken := labels[id]; taken {
			continue
		}
		if s.anonDepartures == 0 {
			continue
		}
		if best == -1 || s.anonDepartures > stats[best].anonDepartures {
			best = id
		}
	}
	if best >= 0 {
		labels[best] = ZoneOpponentLibrary
	}
}

// labelOpponentHand follows the first identified card out of the opponent's
// library; a revealed draw lands in their hand.
func labelOpponentHand(transfers []parser.ZoneTransfer, labels map[int]ZoneRole) {
	var libZone int
	found := false
	for id, role := range labels {
		if role == ZoneOpponentLibrary {
			libZone = id
			found = true
			break
		}
	}
	if !found {
		return
	}
	for _, t := range transfers {
		if t.FromZone == nil || *t.FromZone != libZone || t.CardGrpID == 0 {
			continue
		}
		if _, taken := labels[t.ToZone]; !taken {
			labels[t.ToZone] = ZoneOpponentHand
		}
		return
	}
}

// labelPlayerLibrary looks for heavy named departures funneling into exactly
// one destination zone; a library only ever feeds the hand, unlike a hand
// which fans out to stack, battlefield and more.
func labelPlayerLibrary(stats map[int]*zoneStats, zoneIDs []int, labels map[int]ZoneRole) {
	best := -1
	for _, id := range zoneIDs {
		s := stats[id]
		if _, taken := labels[id]; taken {
			continue
		}
		if s.namedDepartures == 0 || len(s.destinations) != 1 {
			continue
		}
		if best == -1 || s.namedDepartures > stats[best].namedDepartures {
			best = id
		}
	}
	if best >= 0 {
		labels[best] = ZonePlayerLibrary
	}
}

// labelHands marks every unlabelled zone fed directly by a labelled library.
func labelHands(stats map[int]*zoneStats, zoneIDs []int, labels map[int]ZoneRole) {
	for _, id := range zoneIDs {
		s := stats[id]
		if _, taken := labels[id]; taken {
			continue
		}
		origins := make([]int, 0, len(s.origins))
		for origin := range s.origins {
			origins = append(origins, origin)
		}
		sort.Ints(origins)
		for _, origin := range origins {
			switch labels[origin] {
			case ZonePlayerLibrary:
				labels[id] = ZonePlayerHand
			case ZoneOpponentLibrary:
				labels[id] = ZoneOpponentHand
			}
			if _, done := labels[id]; done {
				break
			}
		}
	}
}

// labelGraveyards marks accumulating zones whose arrivals come predominantly
// from the battlefield or the stack: dead permanents and resolved spells.
func labelGraveyards(stats map[int]*zoneStats, zoneIDs []int, labels map[int]ZoneRole) {
	for _, id := range zoneIDs {
		s := stats[id]
		if _, taken := labels[id]; taken {
			continue
		}
		if s.net() <= 0 || s.arrivals == 0 {
			continue
		}
		fromPlay := 0
		for origin, n := range s.origins {
			if labels[origin] == ZoneBattlefield || labels[origin] == ZoneStack {
				fromPlay += n
			}
		}
		if fromPlay*2 > s.arrivals {
			labels[id] = ZoneGraveyard
		}
	}
}

// labelExile sweeps up leftover low-traffic zones. Zones that still do not
// qualify stay unlabelled; consumers treat those as "no role".
func labelExile(stats map[int]*zoneStats, zoneIDs []int, labels map[int]ZoneRole) {
	for _, id := range zoneIDs {
		s := stats[id]
		if _, taken := labels[id]; taken {
			continue
		}
		if s.namedArrivals <= exileNamedArrivalBound {
			labels[id] = ZoneExile
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
