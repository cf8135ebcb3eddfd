package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently on startup; the importer owns its tables.
const schema = `
CREATE TABLE IF NOT EXISTS decks (
	id          BIGSERIAL PRIMARY KEY,
	deck_id     TEXT UNIQUE NOT NULL,
	name        TEXT,
	format      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS deck_cards (
	deck_id      BIGINT NOT NULL REFERENCES decks(id),
	card_grp_id  INTEGER NOT NULL,
	quantity     INTEGER NOT NULL DEFAULT 1,
	is_sideboard BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (deck_id, card_grp_id, is_sideboard)
);

CREATE TABLE IF NOT EXISTS cards (
	grp_id         INTEGER PRIMARY KEY,
	name           TEXT NOT NULL,
	mana_cost      TEXT,
	cmc            DOUBLE PRECISION,
	type_line      TEXT,
	colors         TEXT[],
	color_identity TEXT[],
	set_code       TEXT,
	rarity         TEXT,
	oracle_text    TEXT,
	power          TEXT,
	toughness      TEXT,
	scryfall_id    TEXT,
	image_uri      TEXT,
	is_token       BOOLEAN NOT NULL DEFAULT FALSE,
	object_type    TEXT,
	source_grp_id  INTEGER,
	is_unknown     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS matches (
	id                BIGSERIAL PRIMARY KEY,
	match_id          TEXT UNIQUE NOT NULL,
	player_seat_id    INTEGER,
	player_name       TEXT,
	player_user_id    TEXT,
	opponent_seat_id  INTEGER,
	opponent_name     TEXT,
	opponent_user_id  TEXT,
	deck_id           BIGINT REFERENCES decks(id),
	event_id          TEXT,
	format            TEXT,
	match_type        TEXT,
	result            TEXT,
	winning_team_id   INTEGER,
	winning_reason    TEXT,
	player_final_life INTEGER,
	opponent_final_life INTEGER,
	start_time        TIMESTAMPTZ,
	end_time          TIMESTAMPTZ,
	duration_seconds  INTEGER,
	total_turns       INTEGER NOT NULL DEFAULT 0,
	imported_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game_actions (
	id                 BIGSERIAL PRIMARY KEY,
	match_id           BIGINT NOT NULL REFERENCES matches(id),
	game_state_id      INTEGER NOT NULL,
	turn_number        INTEGER,
	phase              TEXT,
	step               TEXT,
	active_player_seat INTEGER,
	seat_id            INTEGER,
	action_type        TEXT,
	instance_id        INTEGER,
	card_grp_id        INTEGER,
	ability_grp_id     INTEGER,
	mana_cost          JSONB,
	timestamp_ms       BIGINT
);

CREATE TABLE IF NOT EXISTS life_changes (
	id            BIGSERIAL PRIMARY KEY,
	match_id      BIGINT NOT NULL REFERENCES matches(id),
	game_state_id INTEGER NOT NULL,
	turn_number   INTEGER,
	seat_id       INTEGER NOT NULL,
	life_total    INTEGER NOT NULL,
	change_amount INTEGER
);

CREATE TABLE IF NOT EXISTS zone_transfers (
	id            BIGSERIAL PRIMARY KEY,
	match_id      BIGINT NOT NULL REFERENCES matches(id),
	game_state_id INTEGER NOT NULL,
	turn_number   INTEGER,
	instance_id   INTEGER,
	card_grp_id   INTEGER,
	from_zone     INTEGER,
	to_zone       INTEGER,
	category      TEXT
);

CREATE INDEX IF NOT EXISTS idx_game_actions_match ON game_actions(match_id, game_state_id);
CREATE INDEX IF NOT EXISTS idx_life_changes_match ON life_changes(match_id, game_state_id);
CREATE INDEX IF NOT EXISTS idx_zone_transfers_match ON zone_transfers(match_id, game_state_id);
`

// EnsureSchema creates the importer's tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
