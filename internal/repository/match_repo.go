package repository

import (
	"context"
	"fmt"

	"github.com/arenastats/arena-stats-go/internal/parser"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// MatchRepository persists assembled matches with their nested action,
// life-change and zone-transfer lists.
type MatchRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewMatchRepository(pool *pgxpool.Pool, logger *zap.Logger) *MatchRepository {
	return &MatchRepository{pool: pool, logger: logger}
}

// ExistingMatchIDs returns the Arena match ids already imported. Duplicate
// suppression across imports lives here, not in the parsing core.
func (r *MatchRepository) ExistingMatchIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT match_id FROM matches`)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing matches: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// InsertMatch stores one match and all of its nested lists in a single
// transaction. The caller has already filtered actions and resolved cards.
func (r *MatchRepository) InsertMatch(ctx context.Context, m *parser.MatchRecord, actions []parser.GameAction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deckDBID, err := r.ensureDeck(ctx, tx, m)
	if err != nil {
		return err
	}

	var durationSeconds *int
	if d := m.Duration(); d > 0 {
		secs := int(d.Seconds())
		durationSeconds = &secs
	}
	var startTime, endTime any
	if !m.StartTime.IsZero() {
		startTime = m.StartTime
	}
	if !m.EndTime.IsZero() {
		endTime = m.EndTime
	}

	playerLife, opponentLife := finalLife(m)

	var matchDBID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO matches (
			match_id,
			player_seat_id, player_name, player_user_id,
			opponent_seat_id, opponent_name, opponent_user_id,
			deck_id, event_id, format, match_type,
			result, winning_team_id, winning_reason,
			player_final_life, opponent_final_life,
			start_time, end_time, duration_seconds, total_turns
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING id`,
		m.MatchID,
		m.PlayerSeatID, m.PlayerName, m.PlayerUserID,
		m.OpponentSeatID, m.OpponentName, m.OpponentUserID,
		deckDBID, m.EventID, m.Format, m.MatchType,
		string(m.Result), m.WinningTeamID, m.WinningReason,
		playerLife, opponentLife,
		startTime, endTime, durationSeconds, m.TotalTurns,
	).Scan(&matchDBID)
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", m.MatchID, err)
	}

	batch := &pgx.Batch{}
	for _, a := range actions {
		batch.Queue(`
			INSERT INTO game_actions (
				match_id, game_state_id, turn_number, phase, step,
				active_player_seat, seat_id, action_type,
				instance_id, card_grp_id, ability_grp_id, mana_cost, timestamp_ms
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			matchDBID, a.GameStateID, a.TurnNumber, a.Phase, a.Step,
			a.ActivePlayer, a.SeatID, a.ActionType,
			a.InstanceID, a.CardGrpID, a.AbilityGrpID, []byte(a.ManaCost), a.TimestampMS,
		)
	}
	for _, lc := range m.LifeChanges {
		batch.Queue(`
			INSERT INTO life_changes (
				match_id, game_state_id, turn_number, seat_id, life_total, change_amount
			) VALUES ($1,$2,$3,$4,$5,$6)`,
			matchDBID, lc.GameStateID, lc.TurnNumber, lc.SeatID, lc.LifeTotal, lc.Change,
		)
	}
	for _, zt := range m.ZoneTransfers {
		batch.Queue(`
			INSERT INTO zone_transfers (
				match_id, game_state_id, turn_number,
				instance_id, card_grp_id, from_zone, to_zone, category
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			matchDBID, zt.GameStateID, zt.TurnNumber,
			zt.InstanceID, nullableInt(zt.CardGrpID), zt.FromZone, zt.ToZone, zt.Category,
		)
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert match detail row: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit match %s: %w", m.MatchID, err)
	}

	r.logger.Info("stored match",
		zap.String("match_id", m.MatchID),
		zap.String("result", string(m.Result)),
		zap.Int("actions", len(actions)),
		zap.Int("zone_transfers", len(m.ZoneTransfers)),
	)
	return nil
}

func (r *MatchRepository) ensureDeck(ctx context.Context, tx pgx.Tx, m *parser.MatchRecord) (*int64, error) {
	if m.DeckID == "" {
		return nil, nil
	}

	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM decks WHERE deck_id = $1`, m.DeckID).Scan(&id)
	if err == nil {
		return &id, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to look up deck %s: %w", m.DeckID, err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO decks (deck_id, name, format) VALUES ($1, $2, $3)
		RETURNING id`,
		m.DeckID, m.DeckName, m.Format,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert deck %s: %w", m.DeckID, err)
	}

	for _, card := range m.DeckCards {
		if card.CardID == 0 {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO deck_cards (deck_id, card_grp_id, quantity, is_sideboard)
			VALUES ($1, $2, $3, FALSE)
			ON CONFLICT DO NOTHING`,
			id, card.CardID, card.Quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to insert deck card: %w", err)
		}
	}
	return &id, nil
}

func finalLife(m *parser.MatchRecord) (*int, *int) {
	var player, opponent *int
	if life, ok := m.FinalLife[m.PlayerSeatID]; ok {
		v := life
		player = &v
	}
	if life, ok := m.FinalLife[m.OpponentSeatID]; ok {
		v := life
		opponent = &v
	}
	return player, opponent
}

func nullableInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
