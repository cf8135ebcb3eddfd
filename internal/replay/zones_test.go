package replay

import (
	"testing"

	"github.com/arenastats/arena-stats-go/internal/parser"
	"github.com/stretchr/testify/assert"
)

func transfer(gameStateID int, from *int, to, grpID int) parser.ZoneTransfer {
	return parser.ZoneTransfer{
		GameStateID: gameStateID,
		InstanceID:  grpID + 10000,
		CardGrpID:   grpID,
		FromZone:    from,
		ToZone:      to,
		Category:    "ZoneTransfer",
	}
}

func zone(id int) *int { return &id }

// matchTransfers builds traffic shaped like a real two-player game:
// zone 35 player library, 31 player hand, 36 opponent library, 32 opponent
// hand, 27 stack, 28 battlefield, 33 graveyard, 37 exile.
func matchTransfers() []parser.ZoneTransfer {
	var ts []parser.ZoneTransfer
	gs := 0
	next := func() int { gs++; return gs }

	// Player draws seven cards.
	for grp := 101; grp <= 107; grp++ {
		ts = append(ts, transfer(next(), zone(35), 31, grp))
	}
	// Opponent draws seven cards face down, then reveals one draw.
	for i := 0; i < 7; i++ {
		ts = append(ts, transfer(next(), zone(36), 32, 0))
	}
	ts = append(ts, transfer(next(), zone(36), 32, 201))
	// Player casts seven spells, opponent casts two.
	for grp := 101; grp <= 107; grp++ {
		ts = append(ts, transfer(next(), zone(31), 27, grp))
	}
	ts = append(ts, transfer(next(), zone(32), 27, 201))
	ts = append(ts, transfer(next(), zone(32), 27, 202))
	// Seven permanents resolve onto the battlefield, two spells go straight
	// to the graveyard.
	for grp := 101; grp <= 105; grp++ {
		ts = append(ts, transfer(next(), zone(27), 28, grp))
	}
	ts = append(ts, transfer(next(), zone(27), 28, 201))
	ts = append(ts, transfer(next(), zone(27), 28, 202))
	ts = append(ts, transfer(next(), zone(27), 33, 106))
	ts = append(ts, transfer(next(), zone(27), 33, 107))
	// Two creatures die, one card is exiled from hand.
	ts = append(ts, transfer(next(), zone(28), 33, 101))
	ts = append(ts, transfer(next(), zone(28), 33, 201))
	ts = append(ts, transfer(next(), zone(31), 37, 108))

	return ts
}

func TestInferZoneRoles(t *testing.T) {
	labels := InferZoneRoles(matchTransfers())

	assert.Equal(t, map[int]ZoneRole{
		27: ZoneStack,
		28: ZoneBattlefield,
		31: ZonePlayerHand,
		32: ZoneOpponentHand,
		33: ZoneGraveyard,
		35: ZonePlayerLibrary,
		36: ZoneOpponentLibrary,
		37: ZoneExile,
	}, labels)
}

func TestInferZoneRolesDeterministic(t *testing.T) {
	ts := matchTransfers()
	first := InferZoneRoles(ts)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, InferZoneRoles(ts))
	}
}

func TestInferZoneRolesEmpty(t *testing.T) {
	assert.Empty(t, InferZoneRoles(nil))
}

func TestInferZoneRolesSyntheticTransfersSkipSource(t *testing.T) {
	// Token creations contribute an arrival but no departure anywhere.
	ts := []parser.ZoneTransfer{
		{GameStateID: 1, InstanceID: 1, CardGrpID: 9000, FromZone: nil, ToZone: 28, Category: parser.CategoryTokenCreated},
		{GameStateID: 2, InstanceID: 2, CardGrpID: 9001, FromZone: nil, ToZone: 28, Category: parser.CategoryTokenCreated},
	}
	labels := InferZoneRoles(ts)
	assert.Equal(t, ZoneBattlefield, labels[28])
}

func TestInferZoneRolesBattlefieldTieBreak(t *testing.T) {
	// Two zones with identical net accumulation and arrivals: the lower zone
	// id wins so repeated runs agree.
	ts := []parser.ZoneTransfer{
		transfer(1, zone(50), 40, 101),
		transfer(2, zone(50), 41, 102),
	}
	labels := InferZoneRoles(ts)
	assert.Equal(t, ZoneBattlefield, labels[40])
	assert.NotEqual(t, ZoneBattlefield, labels[41])
}

func TestInferZoneRolesNoOpponentLibraryWithoutAnonTraffic(t *testing.T) {
	// All transfers named: nothing qualifies as the opponent's library.
	ts := []parser.ZoneTransfer{
		transfer(1, zone(35), 31, 101),
		transfer(2, zone(35), 31, 102),
		transfer(3, zone(31), 28, 101),
	}
	labels := InferZoneRoles(ts)
	for _, role := range labels {
		assert.NotEqual(t, ZoneOpponentLibrary, role)
		assert.NotEqual(t, ZoneOpponentHand, role)
	}
}
