package replay

import (
	"testing"

	"github.com/arenastats/arena-stats-go/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLabels = map[int]ZoneRole{
	27: ZoneStack,
	28: ZoneBattlefield,
	31: ZonePlayerHand,
	32: ZoneOpponentHand,
	33: ZoneGraveyard,
	35: ZonePlayerLibrary,
	36: ZoneOpponentLibrary,
	37: ZoneExile,
}

func TestBuildStepsVerbs(t *testing.T) {
	tests := []struct {
		name string
		from int
		to   int
		verb string
	}{
		{"cast from hand", 31, 27, "cast"},
		{"opponent cast", 32, 27, "cast"},
		{"land from hand", 31, 28, "entered the battlefield"},
		{"spell resolves to battlefield", 27, 28, "entered the battlefield"},
		{"spell resolves", 27, 33, "resolved"},
		{"countered to exile", 27, 37, "was exiled"},
		{"draw", 35, 31, "drawn"},
		{"opponent draw", 36, 32, "drawn"},
		{"ramp to battlefield", 35, 28, "put onto the battlefield"},
		{"creature dies", 28, 33, "died"},
		{"exiled from battlefield", 28, 37, "was exiled"},
		{"bounced", 28, 31, "bounced to hand"},
		{"tucked", 28, 35, "shuffled into library"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := BuildSteps(testLabels, []parser.ZoneTransfer{
				transfer(1, zone(tt.from), tt.to, 101),
			}, nil, nil, 2, 1)
			require.Len(t, steps, 1)
			assert.Equal(t, tt.verb, steps[0].Verb)
		})
	}
}

func TestBuildStepsSkipsUnmappedPairs(t *testing.T) {
	steps := BuildSteps(testLabels, []parser.ZoneTransfer{
		transfer(1, zone(33), 31, 101), // graveyard to hand, no verb
		transfer(2, zone(37), 28, 102), // exile to battlefield, no verb
		transfer(3, zone(31), 27, 103),
	}, nil, nil, 2, 1)

	require.Len(t, steps, 1)
	assert.Equal(t, "cast", steps[0].Verb)
}

func TestBuildStepsSkipsUnlabelledZones(t *testing.T) {
	steps := BuildSteps(testLabels, []parser.ZoneTransfer{
		transfer(1, zone(99), 28, 101), // unknown source zone
	}, nil, nil, 2, 1)
	assert.Empty(t, steps)
}

func TestBuildStepsActor(t *testing.T) {
	steps := BuildSteps(testLabels, []parser.ZoneTransfer{
		transfer(1, zone(31), 27, 101), // from player hand
		transfer(2, zone(32), 27, 102), // from opponent hand
		transfer(3, zone(27), 28, 101), // from shared zone
	}, nil, nil, 2, 1)

	require.Len(t, steps, 3)
	assert.Equal(t, ActorYou, steps[0].Actor)
	assert.Equal(t, ActorOpponent, steps[1].Actor)
	assert.Equal(t, ActorUnknown, steps[2].Actor)
}

func TestBuildStepsCardNames(t *testing.T) {
	cards := map[int]CardInfo{101: {Name: "Lightning Bolt"}}
	steps := BuildSteps(testLabels, []parser.ZoneTransfer{
		transfer(1, zone(31), 27, 101),
		transfer(2, zone(31), 27, 999), // not in the card table
	}, nil, cards, 2, 1)

	require.Len(t, steps, 2)
	assert.Equal(t, "Lightning Bolt", steps[0].CardName)
	assert.Equal(t, "Unknown Card (999)", steps[1].CardName)
}

func TestBuildStepsTokenCreation(t *testing.T) {
	cards := map[int]CardInfo{9000: {Name: "1/1 Red Goblin Creature Token", IsToken: true}}
	steps := BuildSteps(testLabels, []parser.ZoneTransfer{
		{GameStateID: 1, TurnNumber: 3, InstanceID: 200, CardGrpID: 9000, ToZone: 28, Category: parser.CategoryTokenCreated},
	}, nil, cards, 2, 1)

	require.Len(t, steps, 1)
	s := steps[0]
	assert.Equal(t, VerbTokenCreated, s.Verb)
	assert.Equal(t, ActorUnknown, s.Actor)
	assert.True(t, s.IsToken)
	assert.Equal(t, ZoneBattlefield, s.ToRole)
	assert.Equal(t, "[Token] 1/1 Red Goblin Creature Token — token created", s.Text())
}

func TestBuildStepsTokenMovesKeepMarker(t *testing.T) {
	cards := map[int]CardInfo{9000: {Name: "Goblin Token", IsToken: true}}
	steps := BuildSteps(testLabels, []parser.ZoneTransfer{
		transfer(1, zone(28), 33, 9000),
	}, nil, cards, 2, 1)

	require.Len(t, steps, 1)
	assert.True(t, steps[0].IsToken)
	assert.Equal(t, "[Token] Goblin Token — died", steps[0].Text())
}

func TestBuildStepsLifeMerge(t *testing.T) {
	lifeChanges := []parser.LifeChange{
		{GameStateID: 2, SeatID: 1, LifeTotal: 17, Change: -3},
		{GameStateID: 4, SeatID: 2, LifeTotal: 18, Change: -2},
		{GameStateID: 9, SeatID: 1, LifeTotal: 12, Change: -5},
	}
	steps := BuildSteps(testLabels, []parser.ZoneTransfer{
		transfer(1, zone(31), 27, 101),
		transfer(5, zone(31), 27, 102),
		transfer(9, zone(31), 27, 103),
	}, lifeChanges, nil, 2, 1)

	require.Len(t, steps, 3)
	// Before any change both seats sit at the default life total.
	assert.Equal(t, 20, steps[0].PlayerLife)
	assert.Equal(t, 20, steps[0].OpponentLife)
	// Changes up to and including the step's game state apply.
	assert.Equal(t, 18, steps[1].PlayerLife)
	assert.Equal(t, 17, steps[1].OpponentLife)
	assert.Equal(t, 18, steps[2].PlayerLife)
	assert.Equal(t, 12, steps[2].OpponentLife)
}

func TestBuildStepsOrderPreserved(t *testing.T) {
	steps := BuildSteps(testLabels, []parser.ZoneTransfer{
		transfer(1, zone(35), 31, 101),
		transfer(2, zone(31), 27, 101),
		transfer(3, zone(27), 28, 101),
	}, nil, nil, 2, 1)

	require.Len(t, steps, 3)
	assert.Equal(t, "drawn", steps[0].Verb)
	assert.Equal(t, "cast", steps[1].Verb)
	assert.Equal(t, "entered the battlefield", steps[2].Verb)
}
