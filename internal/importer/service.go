// Package importer coordinates one batch import: extract events from a
// Player.log, assemble matches, classify referenced objects, resolve card
// names in one batched lookup per match, and hand everything to storage.
package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arenastats/arena-stats-go/internal/cards"
	"github.com/arenastats/arena-stats-go/internal/parser"
	"github.com/arenastats/arena-stats-go/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Only player-visible decisions are worth storing; the rest of the action
// stream is menu noise.
var significantActionTypes = map[string]struct{}{
	"ActionType_Cast":          {},
	"ActionType_Play":          {},
	"ActionType_Attack":        {},
	"ActionType_Block":         {},
	"ActionType_Activate":      {},
	"ActionType_Activate_Mana": {},
	"ActionType_Resolution":    {},
}

// MatchStore is the storage collaborator the importer writes through.
type MatchStore interface {
	ExistingMatchIDs(ctx context.Context) (map[string]struct{}, error)
	InsertMatch(ctx context.Context, m *parser.MatchRecord, actions []parser.GameAction) error
}

// CardStore persists card metadata rows.
type CardStore interface {
	ExistingGrpIDs(ctx context.Context, ids []int) (map[int]struct{}, error)
	UpsertCards(ctx context.Context, rows []repository.CardRow) error
}

// CardResolver answers batched grp-id lookups against the external card
// database. Misses are expected, not errors.
type CardResolver interface {
	LookupAll(ids []int) (map[int]cards.Card, []int)
	Lookup(id int) (cards.Card, bool)
}

// Summary accounts for one import run: what was reconstructed and a full
// account of what was not.
type Summary struct {
	SessionID    uuid.UUID
	MatchesFound int
	Imported     int
	Skipped      int
	ParseErrors  []parser.ParseError
	UnknownCards []int
}

// Service runs batch imports.
type Service struct {
	matches      MatchStore
	cards        CardStore
	resolver     CardResolver
	logger       *zap.Logger
	skipExisting bool
}

func NewService(matches MatchStore, cardStore CardStore, resolver CardResolver, skipExisting bool, logger *zap.Logger) *Service {
	return &Service{
		matches:      matches,
		cards:        cardStore,
		resolver:     resolver,
		logger:       logger,
		skipExisting: skipExisting,
	}
}

// ImportLogFile parses one log file and stores every new match found in it.
// Fatal pre-parse errors (missing file, invalid format) return with no
// partial results; everything else is accumulated into the summary.
func (s *Service) ImportLogFile(ctx context.Context, path string) (*Summary, error) {
	summary := &Summary{SessionID: uuid.New()}

	extractor, err := parser.NewExtractor(path, s.logger)
	if err != nil {
		return nil, err
	}

	assembler := parser.NewAssembler(s.logger)
	if err := extractor.Extract(assembler.Consume); err != nil {
		return nil, err
	}
	matches := assembler.Finish()

	summary.MatchesFound = len(matches)
	summary.ParseErrors = append(summary.ParseErrors, extractor.MalformedEvents()...)
	summary.ParseErrors = append(summary.ParseErrors, assembler.Errors()...)

	s.logger.Info("parsed log file",
		zap.String("session_id", summary.SessionID.String()),
		zap.String("path", path),
		zap.Int("matches", len(matches)),
		zap.Int("parse_errors", len(summary.ParseErrors)),
	)

	existing := map[string]struct{}{}
	if s.skipExisting {
		existing, err = s.matches.ExistingMatchIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing match ids: %w", err)
		}
	}

	for _, m := range matches {
		if _, dup := existing[m.MatchID]; dup {
			s.logger.Debug("skipping already imported match", zap.String("match_id", m.MatchID))
			summary.Skipped++
			continue
		}
		if err := s.importMatch(ctx, m, summary); err != nil {
			// One failed match never aborts the rest of the file.
			s.logger.Error("failed to import match",
				zap.String("match_id", m.MatchID),
				zap.Error(err),
			)
			summary.ParseErrors = append(summary.ParseErrors, parser.ParseError{
				EventType: "import",
				Message:   fmt.Sprintf("match %s: %v", m.MatchID, err),
			})
			continue
		}
		existing[m.MatchID] = struct{}{}
		summary.Imported++
	}

	sort.Ints(summary.UnknownCards)
	s.logger.Info("import complete",
		zap.String("session_id", summary.SessionID.String()),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("unknown_cards", len(summary.UnknownCards)),
	)
	return summary, nil
}

func (s *Service) importMatch(ctx context.Context, m *parser.MatchRecord, summary *Summary) error {
	refs := parser.CollectReferences(m)
	for _, grpID := range refs.Unrecognized {
		s.logger.Warn("skipping object with unrecognized type",
			zap.String("match_id", m.MatchID),
			zap.Int("grp_id", grpID),
		)
	}

	rows, unknown := s.resolveCards(ctx, refs)
	summary.UnknownCards = append(summary.UnknownCards, unknown...)
	if err := s.cards.UpsertCards(ctx, rows); err != nil {
		return err
	}

	return s.matches.InsertMatch(ctx, m, filterActions(m.Actions))
}

// resolveCards turns a match's reference set into card rows: one batched
// external lookup for real cards and special faces, generated names for
// tokens and emblems, deterministic placeholders for every miss.
func (s *Service) resolveCards(ctx context.Context, refs parser.ReferenceSet) ([]repository.CardRow, []int) {
	lookupIDs := refs.LookupIDs()

	// Only resolve ids the card table does not already have.
	existing, err := s.cards.ExistingGrpIDs(ctx, lookupIDs)
	if err != nil {
		s.logger.Warn("failed to check existing cards; resolving all", zap.Error(err))
		existing = map[int]struct{}{}
	}
	missing := lookupIDs[:0:0]
	for _, id := range lookupIDs {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}

	resolved, _ := s.resolver.LookupAll(missing)

	var rows []repository.CardRow
	var unknown []int

	for _, id := range missing {
		if c, ok := refs.Special[id]; ok && c.Disposition == parser.DispositionSpecialFace {
			rows = append(rows, s.specialFaceRow(c, resolved))
			continue
		}
		if card, ok := resolved[id]; ok {
			rows = append(rows, scryfallRow(id, card))
			continue
		}
		// Lookup miss on a real card: deterministic placeholder, tracked
		// for later backfill.
		unknown = append(unknown, id)
		rows = append(rows, repository.CardRow{
			GrpID:     id,
			Name:      parser.PlaceholderName(id),
			IsUnknown: true,
		})
	}

	// Tokens and emblems never go through the resolver.
	tokenIDs := make([]int, 0, len(refs.Special))
	for id, c := range refs.Special {
		if c.Disposition == parser.DispositionGeneratedName {
			tokenIDs = append(tokenIDs, id)
		}
	}
	sort.Ints(tokenIDs)
	for _, id := range tokenIDs {
		c := refs.Special[id]
		rows = append(rows, repository.CardRow{
			GrpID:       id,
			Name:        c.Name,
			IsToken:     true,
			ObjectType:  c.ObjectType,
			SourceGrpID: nullableGrpID(c.SourceGrpID),
		})
	}

	return rows, unknown
}

// specialFaceRow builds the row for an adventure half, MDFC back, room half
// or omen: resolved metadata when the bulk data has the face, otherwise a
// bracketed placeholder. Omens additionally try their paired front face for
// the display name.
func (s *Service) specialFaceRow(c parser.Classification, resolved map[int]cards.Card) repository.CardRow {
	if card, ok := resolved[c.GrpID]; ok {
		row := scryfallRow(c.GrpID, card)
		row.ObjectType = c.ObjectType
		row.SourceGrpID = nullableGrpID(c.SourceGrpID)
		return row
	}

	name := ""
	if c.ObjectType == "GameObjectType_Omen" {
		// The omen's display name lives on the paired front face, printed
		// as "Front // Back" one Arena id earlier.
		if frontCard, found := s.resolver.Lookup(c.GrpID - 1); found {
			name = omenHalfName(frontCard.Name)
		}
	}
	if name == "" {
		name = parser.SpecialFacePlaceholderName(c.ObjectType, c.GrpID)
	}
	return repository.CardRow{
		GrpID:       c.GrpID,
		Name:        name,
		ObjectType:  c.ObjectType,
		SourceGrpID: nullableGrpID(c.SourceGrpID),
	}
}

// omenHalfName extracts the back half of a "Front // Back" double-faced
// name; empty when the name has no split.
func omenHalfName(name string) string {
	const sep = " // "
	if i := strings.Index(name, sep); i >= 0 {
		return name[i+len(sep):]
	}
	return ""
}

func scryfallRow(grpID int, card cards.Card) repository.CardRow {
	return repository.CardRow{
		GrpID:         grpID,
		Name:          card.Name,
		ManaCost:      card.ManaCost,
		CMC:           card.CMC,
		TypeLine:      card.TypeLine,
		Colors:        card.Colors,
		ColorIdentity: card.ColorIdentity,
		SetCode:       card.SetCode,
		Rarity:        card.Rarity,
		OracleText:    card.OracleText,
		Power:         card.Power,
		Toughness:     card.Toughness,
		ScryfallID:    card.ScryfallID,
		ImageURI:      card.ImageURI,
	}
}

func filterActions(actions []parser.GameAction) []parser.GameAction {
	out := make([]parser.GameAction, 0, len(actions))
	for _, a := range actions {
		if _, ok := significantActionTypes[a.ActionType]; ok {
			out = append(out, a)
		}
	}
	return out
}

func nullableGrpID(id int) *int {
	if id == 0 {
		return nil
	}
	return &id
}
