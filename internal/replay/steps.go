package replay

import (
	"fmt"

	"github.com/arenastats/arena-stats-go/internal/parser"
)

// Actor attribution values. Zone data identifies the actor only while the
// card leaves a hand; in shared zones the mover is unknowable from transfers
// alone.
const (
	ActorYou      = "You"
	ActorOpponent = "Opponent"
	ActorUnknown  = "—"
)

// VerbTokenCreated is the verb emitted for synthetic token-creation
// transfers, which bypass the zone-pair verb table entirely.
const VerbTokenCreated = "token created"

// genericRole collapses the per-player roles into the side-agnostic names
// the verb table is keyed by.
type genericRole string

const (
	roleHand        genericRole = "Hand"
	roleLibrary     genericRole = "Library"
	roleStack       genericRole = "Stack"
	roleBattlefield genericRole = "Battlefield"
	roleGraveyard   genericRole = "Graveyard"
	roleExile       genericRole = "Exile"
	roleNone        genericRole = ""
)

func generalize(role ZoneRole) genericRole {
	switch role {
	case ZonePlayerHand, ZoneOpponentHand:
		return roleHand
	case ZonePlayerLibrary, ZoneOpponentLibrary:
		return roleLibrary
	case ZoneStack:
		return roleStack
	case ZoneBattlefield:
		return roleBattlefield
	case ZoneGraveyard:
		return roleGraveyard
	case ZoneExile:
		return roleExile
	default:
		return roleNone
	}
}

type rolePair struct {
	from genericRole
	to   genericRole
}

// verbTable maps meaningful zone-pair movements to replay verbs. Pairs
// absent from the table are bookkeeping noise and emit no step.
var verbTable = map[rolePair]string{
	{roleHand, roleStack}:            "cast",
	{roleHand, roleBattlefield}:      "entered the battlefield",
	{roleStack, roleBattlefield}:     "entered the battlefield",
	{roleStack, roleGraveyard}:       "resolved",
	{roleStack, roleExile}:           "was exiled",
	{roleLibrary, roleHand}:          "drawn",
	{roleLibrary, roleBattlefield}:   "put onto the battlefield",
	{roleBattlefield, roleGraveyard}: "died",
	{roleBattlefield, roleExile}:     "was exiled",
	{roleBattlefield, roleHand}:      "bounced to hand",
	{roleBattlefield, roleLibrary}:   "shuffled into library",
}

// CardInfo is the display metadata the step generator needs per grp id.
type CardInfo struct {
	Name    string
	IsToken bool
}

// Step is one entry of the human-readable play-by-play.
type Step struct {
	GameStateID int
	TurnNumber  int
	Actor       string
	Verb        string
	CardName    string
	IsToken     bool
	FromRole    ZoneRole
	ToRole      ZoneRole

	// Life snapshot after applying every life change up to this step's
	// game state.
	PlayerLife   int
	OpponentLife int
}

// Text renders the step as a sentence. Tokens carry a visual marker whether
// they are being created or merely moving.
func (s Step) Text() string {
	if s.IsToken {
		return fmt.Sprintf("[Token] %s — %s", s.CardName, s.Verb)
	}
	return fmt.Sprintf("%s — %s", s.CardName, s.Verb)
}

// BuildSteps translates the ordered transfer list into replay steps using
// the inferred zone labels. Transfers and life changes must each already be
// in (gameStateId, insertion) order; the life totals are merged linearly,
// never re-sorted. A transfer whose card cannot be resolved renders the
// deterministic placeholder name instead of failing the sequence.
func BuildSteps(
	labels map[int]ZoneRole,
	transfers []parser.ZoneTransfer,
	lifeChanges []parser.LifeChange,
	cards map[int]CardInfo,
	playerSeat int,
	opponentSeat int,
) []Step {
	life := lifeTracker{
		pending:      lifeChanges,
		playerSeat:   playerSeat,
		opponentSeat: opponentSeat,
		player:       parser.DefaultLifeTotal,
		opponent:     parser.DefaultLifeTotal,
	}

	var steps []Step
	for _, t := range transfers {
		life.advanceTo(t.GameStateID)

		if t.Category == parser.CategoryTokenCreated {
			// The destination zone may be unlabelled; that is expected for
			// freshly created tokens and no lookup is attempted.
			steps = append(steps, Step{
				GameStateID:  t.GameStateID,
				TurnNumber:   t.TurnNumber,
				Actor:        ActorUnknown,
				Verb:         VerbTokenCreated,
				CardName:     cardName(cards, t.CardGrpID),
				IsToken:      true,
				ToRole:       labels[t.ToZone],
				PlayerLife:   life.player,
				OpponentLife: life.opponent,
			})
			continue
		}

		if t.FromZone == nil {
			continue
		}
		fromRole := labels[*t.FromZone]
		toRole := labels[t.ToZone]
		verb, ok := verbTable[rolePair{generalize(fromRole), generalize(toRole)}]
		if !ok {
			continue
		}

		info, resolved := cards[t.CardGrpID]
		steps = append(steps, Step{
			GameStateID:  t.GameStateID,
			TurnNumber:   t.TurnNumber,
			Actor:        actorFor(fromRole),
			Verb:         verb,
			CardName:     cardName(cards, t.CardGrpID),
			IsToken:      resolved && info.IsToken,
			FromRole:     fromRole,
			ToRole:       toRole,
			PlayerLife:   life.player,
			OpponentLife: life.opponent,
		})
	}
	return steps
}

func actorFor(from ZoneRole) string {
	switch from {
	case ZonePlayerHand:
		return ActorYou
	case ZoneOpponentHand:
		return ActorOpponent
	default:
		return ActorUnknown
	}
}

func cardName(cards map[int]CardInfo, grpID int) string {
	if info, ok := cards[grpID]; ok && info.Name != "" {
		return info.Name
	}
	return parser.PlaceholderName(grpID)
}

// lifeTracker merges the sorted life-change list into running totals as the
// step cursor advances through game states.
type lifeTracker struct {
	pending      []parser.LifeChange
	next         int
	playerSeat   int
	opponentSeat int
	player       int
	opponent     int
}

func (l *lifeTracker) advanceTo(gameStateID int) {
	for l.next < len(l.pending) && l.pending[l.next].GameStateID <= gameStateID {
		lc := l.pending[l.next]
		switch lc.SeatID {
		case l.playerSeat:
			l.player = lc.LifeTotal
		case l.opponentSeat:
			l.opponent = lc.LifeTotal
		}
		l.next++
	}
}
