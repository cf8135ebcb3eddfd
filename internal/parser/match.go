package parser

import (
	"encoding/json"
	"time"
)

// MatchResult is the outcome of a match from the local player's point of view.
type MatchResult string

const (
	ResultWin        MatchResult = "win"
	ResultLoss       MatchResult = "loss"
	ResultDraw       MatchResult = "draw"
	ResultIncomplete MatchResult = "incomplete"
)

// CategoryTokenCreated marks the synthetic zone transfer fabricated for an
// AnnotationType_TokenCreated annotation. Such transfers carry a nil
// FromZone: the token did not move, it appeared.
const CategoryTokenCreated = "TokenCreated"

// MatchRecord is the fully assembled history of one match, keyed by the
// match id issued by the Arena service. Instance ids, zone ids and the
// game-object table are meaningful only within this record.
type MatchRecord struct {
	MatchID string

	PlayerName     string
	PlayerSeatID   int
	PlayerUserID   string
	OpponentName   string
	OpponentSeatID int
	OpponentUserID string

	EventID   string
	Format    string
	MatchType string

	DeckID    string
	DeckName  string
	DeckCards []DeckCard

	Result        MatchResult
	WinningTeamID int
	WinningReason string
	FinalLife     map[int]int // seat id -> last observed life total

	StartTime  time.Time
	EndTime    time.Time
	TotalTurns int

	Actions       []GameAction
	LifeChanges   []LifeChange
	ZoneTransfers []ZoneTransfer

	// GameObjects is the per-match object table, last-write-wins per
	// instance id across successive game-state snapshots.
	GameObjects map[int]GameObjectRecord
}

// Duration returns the wall-clock match length, or zero when either
// timestamp is missing.
func (m *MatchRecord) Duration() time.Duration {
	if m.StartTime.IsZero() || m.EndTime.IsZero() {
		return 0
	}
	return m.EndTime.Sub(m.StartTime)
}

// GameAction is one deduplicated player action from a game-state snapshot.
type GameAction struct {
	GameStateID  int
	TurnNumber   int
	Phase        string
	Step         string
	ActivePlayer int
	SeatID       int
	ActionType   string
	InstanceID   int
	CardGrpID    int
	AbilityGrpID int
	ManaCost     json.RawMessage
	TimestampMS  int64
}

// LifeChange is one observed life-total change for a seat. Life changes and
// zone transfers live in distinct id spaces and correlate only through
// GameStateID ordering.
type LifeChange struct {
	GameStateID      int
	TurnNumber       int
	SeatID           int
	LifeTotal        int
	Change           int
	SourceInstanceID int
}

// ZoneTransfer is one physical card movement between zones. FromZone is nil
// only for synthetic token-creation entries. CardGrpID 0 means the moving
// card's identity is unknown (face-down or opponent-hidden).
type ZoneTransfer struct {
	GameStateID int
	TurnNumber  int
	InstanceID  int
	CardGrpID   int
	FromZone    *int
	ToZone      int
	Category    string
}

// GameObjectRecord is one row of the per-match object table.
type GameObjectRecord struct {
	InstanceID     int
	GrpID          int
	Type           string
	ZoneID         int
	CardTypes      []string
	Subtypes       []string
	Colors         []string
	Power          *int
	Toughness      *int
	OwnerSeat      int
	ControllerSeat int
	SourceGrpID    int
}
