package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func matchStateEvent(matchID, stateType string, line int) RawEvent {
	return RawEvent{
		Type:       EventMatchState,
		LineNumber: line,
		MatchState: &MatchStateEvent{
			GameRoomInfo: GameRoomInfo{
				StateType: stateType,
				GameRoomConfig: GameRoomConfig{
					MatchID: matchID,
					ReservedPlayers: []ReservedPlayer{
						{PlayerName: "Me", SystemSeatID: 2, UserID: "u-me", EventID: "Ladder"},
						{PlayerName: "Foe", SystemSeatID: 1, UserID: "u-foe"},
					},
				},
			},
		},
	}
}

func completedEvent(matchID string, winningTeam int) RawEvent {
	ev := matchStateEvent(matchID, stateTypeMatchCompleted, 0)
	ev.MatchState.GameRoomInfo.FinalMatchResult = &FinalMatchResult{
		WinningTeamID: winningTeam,
		ResultList: []MatchResultEntry{
			{Scope: "MatchScope_Game", WinningTeamID: winningTeam},
			{Scope: matchScopeMatch, WinningTeamID: winningTeam, Reason: "ResultReason_Game"},
		},
	}
	return ev
}

func greEvent(gs *GameStateMessage) RawEvent {
	return RawEvent{
		Type: EventGRE,
		GRE: &GREEvent{
			Messages: []GREMessage{
				{Type: gameStateMessageType, GameStateMessage: gs},
			},
		},
	}
}

func intPtr(v int) *int { return &v }

func TestAssemblerCompleteMatch(t *testing.T) {
	a := NewAssembler(zap.NewNop())

	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(&GameStateMessage{
		GameStateID: 1,
		TurnInfo:    &TurnInfo{TurnNumber: 1, Phase: "Phase_Main1", ActivePlayer: 2},
	}))
	a.Consume(completedEvent("m1", 2))

	matches := a.Finish()
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "m1", m.MatchID)
	assert.Equal(t, "Me", m.PlayerName)
	assert.Equal(t, 2, m.PlayerSeatID)
	assert.Equal(t, "Foe", m.OpponentName)
	assert.Equal(t, 1, m.OpponentSeatID)
	assert.Equal(t, "Ladder", m.EventID)
	assert.Equal(t, ResultWin, m.Result)
	assert.Equal(t, "ResultReason_Game", m.WinningReason)
	assert.Equal(t, 1, m.TotalTurns)
}

func TestAssemblerLossAndDraw(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(completedEvent("m1", 1))
	a.Consume(matchStateEvent("m2", stateTypePlaying, 2))
	a.Consume(completedEvent("m2", 0))

	matches := a.Finish()
	require.Len(t, matches, 2)
	assert.Equal(t, ResultLoss, matches[0].Result)
	assert.Equal(t, ResultDraw, matches[1].Result)
}

func TestAssemblerIncompleteMatchFlushedOnFinish(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))

	matches := a.Finish()
	require.Len(t, matches, 1)
	assert.Equal(t, ResultIncomplete, matches[0].Result)
}

func TestAssemblerNewMatchIDFinalizesPrior(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(matchStateEvent("m2", stateTypePlaying, 2))
	a.Consume(completedEvent("m2", 2))

	matches := a.Finish()
	require.Len(t, matches, 2)
	assert.Equal(t, "m1", matches[0].MatchID)
	assert.Equal(t, ResultIncomplete, matches[0].Result)
	assert.Equal(t, "m2", matches[1].MatchID)
	assert.Equal(t, ResultWin, matches[1].Result)
}

func TestAssemblerOrphanGREEvent(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(greEvent(&GameStateMessage{GameStateID: 1}))

	assert.Empty(t, a.Finish())
	assert.Equal(t, 1, a.OrphanCount())
	require.Len(t, a.Errors(), 1)
	assert.Equal(t, "gre_event with no open match", a.Errors()[0].Message)
}

func TestAssemblerTurnForwardFill(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(&GameStateMessage{
		GameStateID: 1,
		TurnInfo:    &TurnInfo{TurnNumber: 3, Phase: "Phase_Combat"},
	}))
	// Transitional snapshot without turn info: the annotation still lands on
	// turn 3.
	a.Consume(greEvent(&GameStateMessage{
		GameStateID: 2,
		GameObjects: []GameObject{{InstanceID: 50, GrpID: 900, Type: objectTypeCard, ZoneID: 28}},
		Annotations: []Annotation{{
			AffectedIDs: []int{50},
			Type:        []string{AnnotationZoneTransfer},
			Details: []AnnotationDetail{
				{Key: "zone_src", ValueInt32: []int{31}},
				{Key: "zone_dest", ValueInt32: []int{28}},
				{Key: "category", ValueString: []string{"PlayLand"}},
			},
		}},
	}))

	matches := a.Finish()
	require.Len(t, matches, 1)
	require.Len(t, matches[0].ZoneTransfers, 1)
	assert.Equal(t, 3, matches[0].ZoneTransfers[0].TurnNumber)
	assert.Equal(t, 3, matches[0].TotalTurns)
}

func TestAssemblerActionDedup(t *testing.T) {
	gs := func(id int) *GameStateMessage {
		return &GameStateMessage{
			GameStateID: id,
			Actions: []ActionEntry{{
				SeatID: 2,
				Action: &ActionDetail{ActionType: "ActionType_Cast", InstanceID: 100, GrpID: 555},
			}},
		}
	}

	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(gs(1)))
	a.Consume(greEvent(gs(1))) // rebroadcast, same game state
	a.Consume(greEvent(gs(2))) // new game state, records again

	matches := a.Finish()
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Actions, 2)
	assert.Equal(t, 1, matches[0].Actions[0].GameStateID)
	assert.Equal(t, 2, matches[0].Actions[1].GameStateID)
	assert.Equal(t, 555, matches[0].Actions[0].CardGrpID)
}

func TestAssemblerActionGrpIDFromObjectTable(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(&GameStateMessage{
		GameStateID: 1,
		GameObjects: []GameObject{{InstanceID: 100, GrpID: 777, Type: objectTypeCard}},
		Actions: []ActionEntry{{
			SeatID: 2,
			Action: &ActionDetail{ActionType: "ActionType_Cast", InstanceID: 100},
		}},
	}))

	matches := a.Finish()
	require.Len(t, matches[0].Actions, 1)
	assert.Equal(t, 777, matches[0].Actions[0].CardGrpID)
}

func TestAssemblerLifeChanges(t *testing.T) {
	lifeState := func(id, seat1Life, seat2Life int) *GameStateMessage {
		return &GameStateMessage{
			GameStateID: id,
			Players: []PlayerState{
				{SystemSeatNumber: 1, LifeTotal: intPtr(seat1Life)},
				{SystemSeatNumber: 2, LifeTotal: intPtr(seat2Life)},
			},
		}
	}

	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(lifeState(1, 20, 20))) // initial totals, no change
	a.Consume(greEvent(lifeState(2, 17, 20))) // opponent takes 3
	a.Consume(greEvent(lifeState(3, 17, 20))) // rebroadcast, no change
	a.Consume(greEvent(lifeState(4, 17, 22))) // player gains 2
	a.Consume(completedEvent("m1", 2))

	matches := a.Finish()
	require.Len(t, matches, 1)
	m := matches[0]

	require.Len(t, m.LifeChanges, 2)
	assert.Equal(t, 1, m.LifeChanges[0].SeatID)
	assert.Equal(t, 17, m.LifeChanges[0].LifeTotal)
	assert.Equal(t, -3, m.LifeChanges[0].Change)
	assert.Equal(t, 2, m.LifeChanges[1].SeatID)
	assert.Equal(t, 22, m.LifeChanges[1].LifeTotal)
	assert.Equal(t, 2, m.LifeChanges[1].Change)

	assert.Equal(t, map[int]int{1: 17, 2: 22}, m.FinalLife)
}

func TestAssemblerZoneTransferDetails(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(&GameStateMessage{
		GameStateID: 5,
		TurnInfo:    &TurnInfo{TurnNumber: 2},
		GameObjects: []GameObject{{InstanceID: 100, GrpID: 555, Type: objectTypeCard, ZoneID: 27}},
		Annotations: []Annotation{{
			AffectedIDs: []int{100},
			Type:        []string{AnnotationZoneTransfer},
			Details: []AnnotationDetail{
				{Key: "zone_src", ValueInt32: []int{31}},
				{Key: "zone_dest", ValueInt32: []int{27}},
				{Key: "category", ValueString: []string{"CastSpell"}},
			},
		}},
	}))

	matches := a.Finish()
	require.Len(t, matches[0].ZoneTransfers, 1)
	zt := matches[0].ZoneTransfers[0]
	assert.Equal(t, 5, zt.GameStateID)
	assert.Equal(t, 100, zt.InstanceID)
	assert.Equal(t, 555, zt.CardGrpID)
	require.NotNil(t, zt.FromZone)
	assert.Equal(t, 31, *zt.FromZone)
	assert.Equal(t, 27, zt.ToZone)
	assert.Equal(t, "CastSpell", zt.Category)
}

func TestAssemblerZoneTransferDedup(t *testing.T) {
	transfer := func() RawEvent {
		return greEvent(&GameStateMessage{
			GameStateID: 5,
			Annotations: []Annotation{{
				AffectedIDs: []int{100},
				Type:        []string{AnnotationZoneTransfer},
				Details: []AnnotationDetail{
					{Key: "zone_dest", ValueInt32: []int{27}},
					{Key: "category", ValueString: []string{"CastSpell"}},
				},
			}},
		})
	}

	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(transfer())
	a.Consume(transfer())

	matches := a.Finish()
	assert.Len(t, matches[0].ZoneTransfers, 1)
}

func TestAssemblerTokenCreatedSynthesizesTransfer(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(&GameStateMessage{
		GameStateID: 7,
		TurnInfo:    &TurnInfo{TurnNumber: 4},
		GameObjects: []GameObject{{
			InstanceID: 200, GrpID: 9000, Type: objectTypeToken, ZoneID: 28,
		}},
		Annotations: []Annotation{{
			AffectedIDs: []int{200},
			Type:        []string{AnnotationTokenCreated},
		}},
	}))

	matches := a.Finish()
	require.Len(t, matches[0].ZoneTransfers, 1)
	zt := matches[0].ZoneTransfers[0]
	assert.Nil(t, zt.FromZone)
	assert.Equal(t, 28, zt.ToZone)
	assert.Equal(t, CategoryTokenCreated, zt.Category)
	assert.Equal(t, 9000, zt.CardGrpID)
}

func TestAssemblerTokenCreatedUnknownInstance(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(&GameStateMessage{
		GameStateID: 7,
		Annotations: []Annotation{{
			AffectedIDs: []int{999},
			Type:        []string{AnnotationTokenCreated},
		}},
	}))

	matches := a.Finish()
	assert.Empty(t, matches[0].ZoneTransfers)
	require.Len(t, a.Errors(), 1)
	assert.Contains(t, a.Errors()[0].Message, "999")
}

func TestAssemblerDeckBufferedBeforeMatch(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(RawEvent{
		Type: EventCourseDeck,
		Deck: &DeckEvent{
			Summary: &DeckSummary{
				Name:       "Mono Red",
				DeckID:     "deck-1",
				Attributes: []DeckAttribute{{Name: "Format", Value: "Standard"}},
			},
			Deck: &DeckList{MainDeck: []DeckCard{{CardID: 101, Quantity: 4}}},
		},
	})
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))

	matches := a.Finish()
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, "Mono Red", m.DeckName)
	assert.Equal(t, "deck-1", m.DeckID)
	assert.Equal(t, "Standard", m.Format)
	require.Len(t, m.DeckCards, 1)
	assert.Equal(t, 101, m.DeckCards[0].CardID)
}

func TestAssemblerGameInfoCaptured(t *testing.T) {
	a := NewAssembler(zap.NewNop())
	a.Consume(matchStateEvent("m1", stateTypePlaying, 1))
	a.Consume(greEvent(&GameStateMessage{
		GameStateID: 1,
		GameInfo:    &GameInfo{SuperFormat: "SuperFormat_Standard", Type: "MatchType_Duel"},
	}))

	matches := a.Finish()
	assert.Equal(t, "SuperFormat_Standard", matches[0].Format)
	assert.Equal(t, "MatchType_Duel", matches[0].MatchType)
}
