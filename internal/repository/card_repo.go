package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CardRow is one card-table row ready for upsert: a resolved Scryfall card,
// a generated token/emblem name, or a placeholder for a lookup miss.
type CardRow struct {
	GrpID         int
	Name          string
	ManaCost      string
	CMC           float64
	TypeLine      string
	Colors        []string
	ColorIdentity []string
	SetCode       string
	Rarity        string
	OracleText    string
	Power         string
	Toughness     string
	ScryfallID    string
	ImageURI      string
	IsToken       bool
	ObjectType    string
	SourceGrpID   *int
	IsUnknown     bool
}

// CardRepository persists card metadata keyed by grp id.
type CardRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewCardRepository(pool *pgxpool.Pool, logger *zap.Logger) *CardRepository {
	return &CardRepository{pool: pool, logger: logger}
}

// ExistingGrpIDs returns which of the given grp ids already have card rows.
func (r *CardRepository) ExistingGrpIDs(ctx context.Context, ids []int) (map[int]struct{}, error) {
	if len(ids) == 0 {
		return map[int]struct{}{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT grp_id FROM cards WHERE grp_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing cards: %w", err)
	}
	defer rows.Close()

	existing := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan grp id: %w", err)
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

// UpsertCards writes card rows in one batch. Resolved cards replace
// placeholders; placeholders never overwrite a resolved row.
func (r *CardRepository) UpsertCards(ctx context.Context, cards []CardRow) error {
	if len(cards) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range cards {
		if c.IsUnknown {
			batch.Queue(`
				INSERT INTO cards (grp_id, name, is_token, object_type, source_grp_id, is_unknown)
				VALUES ($1, $2, $3, $4, $5, TRUE)
				ON CONFLICT (grp_id) DO NOTHING`,
				c.GrpID, c.Name, c.IsToken, nullableString(c.ObjectType), c.SourceGrpID,
			)
			continue
		}
		batch.Queue(`
			INSERT INTO cards (
				grp_id, name, mana_cost, cmc, type_line,
				colors, color_identity, set_code, rarity,
				oracle_text, power, toughness, scryfall_id, image_uri,
				is_token, object_type, source_grp_id, is_unknown
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,FALSE)
			ON CONFLICT (grp_id) DO UPDATE SET
				name = EXCLUDED.name,
				mana_cost = EXCLUDED.mana_cost,
				cmc = EXCLUDED.cmc,
				type_line = EXCLUDED.type_line,
				colors = EXCLUDED.colors,
				color_identity = EXCLUDED.color_identity,
				set_code = EXCLUDED.set_code,
				rarity = EXCLUDED.rarity,
				oracle_text = EXCLUDED.oracle_text,
				power = EXCLUDED.power,
				toughness = EXCLUDED.toughness,
				scryfall_id = EXCLUDED.scryfall_id,
				image_uri = EXCLUDED.image_uri,
				is_token = EXCLUDED.is_token,
				object_type = EXCLUDED.object_type,
				source_grp_id = EXCLUDED.source_grp_id,
				is_unknown = FALSE`,
			c.GrpID, c.Name, c.ManaCost, c.CMC, c.TypeLine,
			c.Colors, c.ColorIdentity, c.SetCode, c.Rarity,
			c.OracleText, c.Power, c.Toughness, c.ScryfallID, c.ImageURI,
			c.IsToken, nullableString(c.ObjectType), c.SourceGrpID,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to upsert card: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close card batch: %w", err)
	}

	r.logger.Debug("upserted cards", zap.Int("count", len(cards)))
	return nil
}

// UnknownGrpIDs lists cards stored as placeholders, for later backfill once
// the bulk data catches up.
func (r *CardRepository) UnknownGrpIDs(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT grp_id FROM cards WHERE is_unknown ORDER BY grp_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unknown cards: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan grp id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
