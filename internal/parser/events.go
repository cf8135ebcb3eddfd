package parser

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// EventType classifies a raw log event by its top-level discriminator key.
type EventType string

const (
	EventMatchState EventType = "match_state"
	EventGRE        EventType = "gre_event"
	EventCourseDeck EventType = "course_deck"
	EventDeckSet    EventType = "deck_set"
	EventUnknown    EventType = "unknown"
)

// RawEvent is one parsed JSON object from the log, decoded into its typed
// payload at the extraction boundary. Exactly one of the payload pointers is
// non-nil, matching Type.
type RawEvent struct {
	Type       EventType
	LineNumber int
	Timestamp  int64     // epoch milliseconds from the payload, 0 if absent
	WallTime   time.Time // last timestamp line seen before this event, zero if none

	MatchState *MatchStateEvent
	GRE        *GREEvent
	Deck       *DeckEvent
}

// Time returns the best available wall-clock time for the event.
func (ev RawEvent) Time() time.Time {
	if ev.Timestamp > 0 {
		return time.UnixMilli(ev.Timestamp).UTC()
	}
	return ev.WallTime
}

// MatchStateEvent is the payload of matchGameRoomStateChangedEvent.
type MatchStateEvent struct {
	GameRoomInfo GameRoomInfo `json:"gameRoomInfo"`
}

type GameRoomInfo struct {
	StateType        string            `json:"stateType"`
	GameRoomConfig   GameRoomConfig    `json:"gameRoomConfig"`
	FinalMatchResult *FinalMatchResult `json:"finalMatchResult"`
}

type GameRoomConfig struct {
	MatchID         string           `json:"matchId"`
	ReservedPlayers []ReservedPlayer `json:"reservedPlayers"`
}

type ReservedPlayer struct {
	PlayerName   string `json:"playerName"`
	SystemSeatID int    `json:"systemSeatId"`
	UserID       string `json:"userId"`
	EventID      string `json:"eventId"`
}

type FinalMatchResult struct {
	WinningTeamID int                `json:"winningTeamId"`
	ResultList    []MatchResultEntry `json:"resultList"`
}

type MatchResultEntry struct {
	Scope         string `json:"scope"`
	WinningTeamID int    `json:"winningTeamId"`
	Reason        string `json:"reason"`
}

// GREEvent is the payload of greToClientEvent.
type GREEvent struct {
	Messages []GREMessage `json:"greToClientMessages"`
}

type GREMessage struct {
	Type             string            `json:"type"`
	GameStateMessage *GameStateMessage `json:"gameStateMessage"`
}

type GameStateMessage struct {
	GameStateID int           `json:"gameStateId"`
	TurnInfo    *TurnInfo     `json:"turnInfo"`
	GameInfo    *GameInfo     `json:"gameInfo"`
	Players     []PlayerState `json:"players"`
	GameObjects []GameObject  `json:"gameObjects"`
	Actions     []ActionEntry `json:"actions"`
	Annotations []Annotation  `json:"annotations"`
}

type TurnInfo struct {
	TurnNumber   int    `json:"turnNumber"`
	Phase        string `json:"phase"`
	Step         string `json:"step"`
	ActivePlayer int    `json:"activePlayer"`
}

type GameInfo struct {
	SuperFormat string `json:"superFormat"`
	Type        string `json:"type"`
}

type PlayerState struct {
	SystemSeatNumber int  `json:"systemSeatNumber"`
	LifeTotal        *int `json:"lifeTotal"`
}

// GameObject is one entry of a gameObjects snapshot array.
type GameObject struct {
	InstanceID        int          `json:"instanceId"`
	GrpID             int          `json:"grpId"`
	Type              string       `json:"type"`
	ZoneID            int          `json:"zoneId"`
	CardTypes         []string     `json:"cardTypes"`
	Subtypes          []string     `json:"subtypes"`
	Color             []string     `json:"color"`
	Power             ValueWrapper `json:"power"`
	Toughness         ValueWrapper `json:"toughness"`
	OwnerSeatID       int          `json:"ownerSeatId"`
	ControllerSeatID  int          `json:"controllerSeatId"`
	ObjectSourceGrpID int          `json:"objectSourceGrpId"`
}

// ValueWrapper unwraps Arena's {"value": N} number envelopes.
type ValueWrapper struct {
	Value *int `json:"value"`
}

type ActionEntry struct {
	SeatID int           `json:"seatId"`
	Action *ActionDetail `json:"action"`
}

type ActionDetail struct {
	ActionType   string          `json:"actionType"`
	InstanceID   int             `json:"instanceId"`
	GrpID        int             `json:"grpId"`
	AbilityGrpID int             `json:"abilityGrpId"`
	ManaCost     json.RawMessage `json:"manaCost"`
}

const (
	AnnotationZoneTransfer = "AnnotationType_ZoneTransfer"
	AnnotationTokenCreated = "AnnotationType_TokenCreated"
)

type Annotation struct {
	ID          int                `json:"id"`
	AffectorID  int                `json:"affectorId"`
	AffectedIDs []int              `json:"affectedIds"`
	Type        []string           `json:"type"`
	Details     []AnnotationDetail `json:"details"`
}

// HasType reports whether the annotation carries the given type tag.
func (a Annotation) HasType(t string) bool {
	for _, at := range a.Type {
		if at == t {
			return true
		}
	}
	return false
}

type AnnotationDetail struct {
	Key         string   `json:"key"`
	ValueInt32  []int    `json:"valueInt32"`
	ValueString []string `json:"valueString"`
}

// DeckEvent carries deck composition from CourseDeck / CourseDeckSummary /
// EventSetDeckV2 payloads. Arena announces decks in a few shapes; the
// envelope decoding below normalizes them into Summary + Deck.
type DeckEvent struct {
	Summary *DeckSummary
	Deck    *DeckList
}

type DeckSummary struct {
	Name       string          `json:"Name"`
	DeckID     string          `json:"DeckId"`
	Attributes []DeckAttribute `json:"Attributes"`
}

type DeckAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type DeckList struct {
	MainDeck []DeckCard `json:"MainDeck"`
}

type DeckCard struct {
	CardID   int `json:"cardId"`
	Quantity int `json:"quantity"`
}

// Format returns the deck format from the summary attributes, if present.
func (d *DeckEvent) Format() string {
	if d.Summary == nil {
		return ""
	}
	for _, attr := range d.Summary.Attributes {
		if attr.Name == "Format" {
			return attr.Value
		}
	}
	return ""
}

// classifyEvent decodes a parsed top-level object into a typed RawEvent by
// testing its discriminator keys in order; first match wins. Objects with no
// recognized key come back as EventUnknown and are dropped by the caller.
// A recognized key whose payload fails to decode returns a non-nil error so
// the extractor can record a malformed-event entry.
func classifyEvent(raw []byte, keys map[string]json.RawMessage, lineNumber int) (RawEvent, error) {
	ev := RawEvent{Type: EventUnknown, LineNumber: lineNumber}
	if ts, ok := keys["timestamp"]; ok {
		ev.Timestamp = parseTimestampMillis(ts)
	}

	if payload, ok := keys["matchGameRoomStateChangedEvent"]; ok {
		ms := &MatchStateEvent{}
		if err := json.Unmarshal(payload, ms); err != nil {
			return ev, err
		}
		ev.Type = EventMatchState
		ev.MatchState = ms
		return ev, nil
	}

	if payload, ok := keys["greToClientEvent"]; ok {
		gre := &GREEvent{}
		if err := json.Unmarshal(payload, gre); err != nil {
			return ev, err
		}
		ev.Type = EventGRE
		ev.GRE = gre
		return ev, nil
	}

	if _, ok := keys["CourseDeck"]; ok {
		deck, err := decodeDeckEvent(keys, "CourseDeckSummary", "CourseDeck")
		if err != nil {
			return ev, err
		}
		ev.Type = EventCourseDeck
		ev.Deck = deck
		return ev, nil
	}
	if _, ok := keys["CourseDeckSummary"]; ok {
		deck, err := decodeDeckEvent(keys, "CourseDeckSummary", "CourseDeck")
		if err != nil {
			return ev, err
		}
		ev.Type = EventCourseDeck
		ev.Deck = deck
		return ev, nil
	}

	// EventSetDeckV2 requests wrap the deck in a Summary/Deck envelope.
	if _, ok := keys["request"]; ok && bytes.Contains(raw, []byte("EventSetDeckV2")) {
		deck, err := decodeDeckEvent(keys, "Summary", "Deck")
		if err != nil {
			return ev, err
		}
		ev.Type = EventDeckSet
		ev.Deck = deck
		return ev, nil
	}
	if _, ok := keys["Summary"]; ok {
		deck, err := decodeDeckEvent(keys, "Summary", "Deck")
		if err != nil {
			return ev, err
		}
		ev.Type = EventDeckSet
		ev.Deck = deck
		return ev, nil
	}

	return ev, nil
}

func decodeDeckEvent(keys map[string]json.RawMessage, summaryKey, deckKey string) (*DeckEvent, error) {
	deck := &DeckEvent{}
	if payload, ok := keys[summaryKey]; ok {
		summary := &DeckSummary{}
		if err := json.Unmarshal(payload, summary); err != nil {
			return nil, err
		}
		deck.Summary = summary
	}
	if payload, ok := keys[deckKey]; ok {
		list := &DeckList{}
		if err := json.Unmarshal(payload, list); err != nil {
			return nil, err
		}
		deck.Deck = list
	}
	return deck, nil
}

// parseTimestampMillis handles both numeric and quoted-string timestamp
// values. Values that do not fit epoch milliseconds (.NET tick counters)
// are discarded rather than misread as dates far in the future.
func parseTimestampMillis(raw json.RawMessage) int64 {
	s := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return 0
	}
	// 13-digit values are epoch millis; anything larger is a tick counter.
	if ms > 9_999_999_999_999 {
		return 0
	}
	return ms
}
