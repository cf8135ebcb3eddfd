package parser

import (
	"fmt"

	"go.uber.org/zap"
)

// Seat 2 is the local player in the client's own log.
const localPlayerSeat = 2

// DefaultLifeTotal is assumed for a seat until its first observed life
// value. Initialization snapshots genuinely lack life data.
const DefaultLifeTotal = 20

const (
	stateTypePlaying        = "MatchGameRoomStateType_Playing"
	stateTypeMatchCompleted = "MatchGameRoomStateType_MatchCompleted"

	gameStateMessageType = "GREMessageType_GameStateMessage"
	matchScopeMatch      = "MatchScope_Match"
)

type actionKey struct {
	gameStateID int
	actionType  string
	instanceID  int
}

type transferKey struct {
	gameStateID int
	instanceID  int
	category    string
}

// Assembler folds the extracted event stream into MatchRecords. It holds at
// most one open match at a time; a new match id forces finalization of the
// prior one. Events are consumed strictly in log order and never reordered.
type Assembler struct {
	logger *zap.Logger

	current   *MatchRecord
	completed []*MatchRecord

	// Per-match running state, reset when a match opens.
	lastTurn         int
	lastPhase        string
	lastStep         string
	lastActivePlayer int
	lastLife         map[int]int
	seenActions      map[actionKey]struct{}
	seenTransfers    map[transferKey]struct{}

	// Decks can be announced before the room state event opens the match.
	pendingDeck *DeckEvent

	errors  []ParseError
	orphans int
}

// NewAssembler returns an assembler ready to consume one event stream.
func NewAssembler(logger *zap.Logger) *Assembler {
	return &Assembler{logger: logger}
}

// Consume processes one event. A bad record is logged and counted; it never
// aborts processing of the remaining stream.
func (a *Assembler) Consume(ev RawEvent) {
	switch ev.Type {
	case EventMatchState:
		a.processMatchState(ev)
	case EventGRE:
		a.processGREEvent(ev)
	case EventCourseDeck, EventDeckSet:
		a.processDeckEvent(ev)
	}
}

// Finish flushes any still-open match (result stays incomplete when no
// completion signal was seen) and returns all assembled matches in order.
func (a *Assembler) Finish() []*MatchRecord {
	if a.current != nil {
		a.finalizeCurrent()
	}
	return a.completed
}

// Errors returns the non-fatal processing errors accumulated so far,
// including dropped orphan events.
func (a *Assembler) Errors() []ParseError {
	out := make([]ParseError, len(a.errors))
	copy(out, a.errors)
	return out
}

// OrphanCount returns how many gre_events arrived with no open match.
func (a *Assembler) OrphanCount() int {
	return a.orphans
}

func (a *Assembler) processMatchState(ev RawEvent) {
	info := ev.MatchState.GameRoomInfo
	matchID := info.GameRoomConfig.MatchID
	if matchID == "" {
		a.recordError(ev, "match_state event without matchId")
		return
	}

	if a.current == nil || a.current.MatchID != matchID {
		if a.current != nil {
			a.logger.Warn("new match id while another match is open; finalizing prior match",
				zap.String("open_match_id", a.current.MatchID),
				zap.String("new_match_id", matchID),
			)
			a.finalizeCurrent()
		}
		a.openMatch(matchID, ev)
	}

	for _, p := range info.GameRoomConfig.ReservedPlayers {
		if p.SystemSeatID == localPlayerSeat {
			a.current.PlayerName = p.PlayerName
			a.current.PlayerSeatID = p.SystemSeatID
			a.current.PlayerUserID = p.UserID
		} else {
			a.current.OpponentName = p.PlayerName
			a.current.OpponentSeatID = p.SystemSeatID
			a.current.OpponentUserID = p.UserID
		}
		if p.EventID != "" && a.current.EventID == "" {
			a.current.EventID = p.EventID
		}
	}

	if info.StateType == stateTypeMatchCompleted {
		a.completeMatch(ev, info.FinalMatchResult)
	}
}

func (a *Assembler) openMatch(matchID string, ev RawEvent) {
	a.current = &MatchRecord{
		MatchID:     matchID,
		Result:      ResultIncomplete,
		FinalLife:   make(map[int]int),
		GameObjects: make(map[int]GameObjectRecord),
		StartTime:   ev.Time(),
	}
	a.lastTurn = 0
	a.lastPhase = ""
	a.lastStep = ""
	a.lastActivePlayer = 0
	a.lastLife = make(map[int]int)
	a.seenActions = make(map[actionKey]struct{})
	a.seenTransfers = make(map[transferKey]struct{})

	if a.pendingDeck != nil {
		a.attachDeck(a.pendingDeck)
		a.pendingDeck = nil
	}

	a.logger.Debug("opened match", zap.String("match_id", matchID))
}

func (a *Assembler) completeMatch(ev RawEvent, final *FinalMatchResult) {
	m := a.current
	m.EndTime = ev.Time()

	if final != nil {
		m.WinningTeamID = final.WinningTeamID
		scoped := false
		for _, entry := range final.ResultList {
			if entry.Scope != matchScopeMatch {
				continue
			}
			scoped = true
			m.WinningReason = entry.Reason
			m.Result = resultForWinner(entry.WinningTeamID, m.PlayerSeatID)
		}
		if !scoped && final.WinningTeamID != 0 {
			m.Result = resultForWinner(final.WinningTeamID, m.PlayerSeatID)
		}
	}

	for seat, life := range a.lastLife {
		m.FinalLife[seat] = life
	}

	a.finalizeCurrent()
}

func resultForWinner(winningTeamID, playerSeatID int) MatchResult {
	switch {
	case winningTeamID == 0:
		return ResultDraw
	case winningTeamID == playerSeatID:
		return ResultWin
	default:
		return ResultLoss
	}
}

func (a *Assembler) finalizeCurrent() {
	m := a.current
	a.completed = append(a.completed, m)
	a.current = nil
	a.logger.Info("finalized match",
		zap.String("match_id", m.MatchID),
		zap.String("result", string(m.Result)),
		zap.Int("turns", m.TotalTurns),
		zap.Int("zone_transfers", len(m.ZoneTransfers)),
		zap.Int("actions", len(m.Actions)),
	)
}

func (a *Assembler) processGREEvent(ev RawEvent) {
	if a.current == nil {
		// Match state event lost or out of order; drop the message.
		a.orphans++
		a.recordError(ev, "gre_event with no open match")
		a.logger.Warn("dropping gre_event with no open match", zap.Int("line", ev.LineNumber))
		return
	}

	for _, msg := range ev.GRE.Messages {
		if msg.Type != gameStateMessageType || msg.GameStateMessage == nil {
			continue
		}
		a.processGameState(msg.GameStateMessage, ev)
	}
}

func (a *Assembler) processGameState(gs *GameStateMessage, ev RawEvent) {
	m := a.current

	// Forward-fill the turn number: transitional snapshots lack turnInfo
	// and would otherwise read as turn zero.
	turn := a.lastTurn
	if gs.TurnInfo != nil {
		if gs.TurnInfo.TurnNumber > 0 {
			turn = gs.TurnInfo.TurnNumber
			a.lastTurn = turn
		}
		if gs.TurnInfo.Phase != "" {
			a.lastPhase = gs.TurnInfo.Phase
		}
		if gs.TurnInfo.Step != "" {
			a.lastStep = gs.TurnInfo.Step
		}
		if gs.TurnInfo.ActivePlayer != 0 {
			a.lastActivePlayer = gs.TurnInfo.ActivePlayer
		}
	}
	if turn > m.TotalTurns {
		m.TotalTurns = turn
	}

	if gs.GameInfo != nil {
		if gs.GameInfo.SuperFormat != "" {
			m.Format = gs.GameInfo.SuperFormat
		}
		if gs.GameInfo.Type != "" {
			m.MatchType = gs.GameInfo.Type
		}
	}

	// Refresh the object table before annotations are walked: token-created
	// annotations need the token's zone from this very snapshot.
	for _, obj := range gs.GameObjects {
		if obj.InstanceID == 0 {
			continue
		}
		m.GameObjects[obj.InstanceID] = GameObjectRecord{
			InstanceID:     obj.InstanceID,
			GrpID:          obj.GrpID,
			Type:           obj.Type,
			ZoneID:         obj.ZoneID,
			CardTypes:      obj.CardTypes,
			Subtypes:       obj.Subtypes,
			Colors:         obj.Color,
			Power:          obj.Power.Value,
			Toughness:      obj.Toughness.Value,
			OwnerSeat:      obj.OwnerSeatID,
			ControllerSeat: obj.ControllerSeatID,
			SourceGrpID:    obj.ObjectSourceGrpID,
		}
	}

	a.recordLifeTotals(gs, turn)
	a.recordActions(gs, turn, ev)
	a.recordAnnotations(gs, turn, ev)
}

// recordLifeTotals appends one LifeChange per seat whose life total differs
// from the last recorded value. Seats start at the default life total, so a
// repeated snapshot of an unchanged total produces nothing.
func (a *Assembler) recordLifeTotals(gs *GameStateMessage, turn int) {
	for _, p := range gs.Players {
		if p.LifeTotal == nil || p.SystemSeatNumber == 0 {
			continue
		}
		seat := p.SystemSeatNumber
		prev, seen := a.lastLife[seat]
		if !seen {
			prev = DefaultLifeTotal
		}
		if *p.LifeTotal == prev {
			a.lastLife[seat] = *p.LifeTotal
			continue
		}
		a.lastLife[seat] = *p.LifeTotal
		a.current.LifeChanges = append(a.current.LifeChanges, LifeChange{
			GameStateID: gs.GameStateID,
			TurnNumber:  turn,
			SeatID:      seat,
			LifeTotal:   *p.LifeTotal,
			Change:      *p.LifeTotal - prev,
		})
	}
}

// recordActions appends deduplicated actions. The client rebroadcasts the
// full available-action menu with every snapshot, so the same action shows
// up dozens of times; the (gameStateId, actionType, instanceId) key keeps
// each distinct one once.
func (a *Assembler) recordActions(gs *GameStateMessage, turn int, ev RawEvent) {
	for _, entry := range gs.Actions {
		if entry.Action == nil {
			continue
		}
		act := entry.Action
		key := actionKey{gs.GameStateID, act.ActionType, act.InstanceID}
		if _, dup := a.seenActions[key]; dup {
			continue
		}
		a.seenActions[key] = struct{}{}

		grpID := act.GrpID
		if obj, ok := a.current.GameObjects[act.InstanceID]; ok && obj.GrpID != 0 {
			grpID = obj.GrpID
		}

		a.current.Actions = append(a.current.Actions, GameAction{
			GameStateID:  gs.GameStateID,
			TurnNumber:   turn,
			Phase:        a.lastPhase,
			Step:         a.lastStep,
			ActivePlayer: a.lastActivePlayer,
			SeatID:       entry.SeatID,
			ActionType:   act.ActionType,
			InstanceID:   act.InstanceID,
			CardGrpID:    grpID,
			AbilityGrpID: act.AbilityGrpID,
			ManaCost:     act.ManaCost,
			TimestampMS:  ev.Timestamp,
		})
	}
}

func (a *Assembler) recordAnnotations(gs *GameStateMessage, turn int, ev RawEvent) {
	for _, ann := range gs.Annotations {
		switch {
		case ann.HasType(AnnotationZoneTransfer):
			a.recordZoneTransfer(gs, ann, turn)
		case ann.HasType(AnnotationTokenCreated):
			a.recordTokenCreated(gs, ann, turn, ev)
		}
	}
}

func (a *Assembler) recordZoneTransfer(gs *GameStateMessage, ann Annotation, turn int) {
	var (
		fromZone *int
		toZone   int
		category string
	)
	for _, d := range ann.Details {
		switch d.Key {
		case "zone_src":
			if len(d.ValueInt32) > 0 {
				src := d.ValueInt32[0]
				fromZone = &src
			}
		case "zone_dest":
			if len(d.ValueInt32) > 0 {
				toZone = d.ValueInt32[0]
			}
		case "category":
			if len(d.ValueString) > 0 {
				category = d.ValueString[0]
			}
		}
	}

	for _, instanceID := range ann.AffectedIDs {
		key := transferKey{gs.GameStateID, instanceID, category}
		if _, dup := a.seenTransfers[key]; dup {
			continue
		}
		a.seenTransfers[key] = struct{}{}

		var grpID int
		if obj, ok := a.current.GameObjects[instanceID]; ok {
			grpID = obj.GrpID
		}
		src := fromZone
		if src != nil {
			// Copy so every transfer owns its pointer.
			v := *src
			src = &v
		}
		a.current.ZoneTransfers = append(a.current.ZoneTransfers, ZoneTransfer{
			GameStateID: gs.GameStateID,
			TurnNumber:  turn,
			InstanceID:  instanceID,
			CardGrpID:   grpID,
			FromZone:    src,
			ToZone:      toZone,
			Category:    category,
		})
	}
}

// recordTokenCreated fabricates a synthetic zone transfer for each created
// token: nil source zone, destination taken from the token's current zone in
// the just-refreshed object table. Without it the token's appearance would
// be invisible to zone inference and replay.
func (a *Assembler) recordTokenCreated(gs *GameStateMessage, ann Annotation, turn int, ev RawEvent) {
	for _, instanceID := range ann.AffectedIDs {
		obj, ok := a.current.GameObjects[instanceID]
		if !ok {
			a.recordError(ev, fmt.Sprintf("token-created annotation for unknown instance %d", instanceID))
			continue
		}
		key := transferKey{gs.GameStateID, instanceID, CategoryTokenCreated}
		if _, dup := a.seenTransfers[key]; dup {
			continue
		}
		a.seenTransfers[key] = struct{}{}

		a.current.ZoneTransfers = append(a.current.ZoneTransfers, ZoneTransfer{
			GameStateID: gs.GameStateID,
			TurnNumber:  turn,
			InstanceID:  instanceID,
			CardGrpID:   obj.GrpID,
			FromZone:    nil,
			ToZone:      obj.ZoneID,
			Category:    CategoryTokenCreated,
		})
	}
}

func (a *Assembler) processDeckEvent(ev RawEvent) {
	if a.current == nil {
		// The client announces course decks ahead of the room state event;
		// hold the deck for the next match that opens.
		a.pendingDeck = ev.Deck
		return
	}
	a.attachDeck(ev.Deck)
}

func (a *Assembler) attachDeck(deck *DeckEvent) {
	m := a.current
	if deck.Summary != nil {
		m.DeckName = deck.Summary.Name
		m.DeckID = deck.Summary.DeckID
		if f := deck.Format(); f != "" {
			m.Format = f
		}
	}
	if deck.Deck != nil {
		m.DeckCards = deck.Deck.MainDeck
	}
}

func (a *Assembler) recordError(ev RawEvent, msg string) {
	a.errors = append(a.errors, ParseError{
		EventType:  string(ev.Type),
		LineNumber: ev.LineNumber,
		Message:    msg,
	})
	matchID := ""
	if a.current != nil {
		matchID = a.current.MatchID
	}
	a.logger.Warn("event processing error",
		zap.String("event_type", string(ev.Type)),
		zap.Int("line", ev.LineNumber),
		zap.String("match_id", matchID),
		zap.String("error", msg),
	)
}
