// Package cards resolves Arena grp ids against Scryfall's bulk card data.
// The bulk JSON is downloaded once, indexed by arena_id and cached on disk;
// lookups are answered locally and in batches.
package cards

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arenastats/arena-stats-go/internal/config"
	"go.uber.org/zap"
)

const (
	bulkFileName  = "scryfall_default_cards.json"
	indexFileName = "arena_id_index.json"

	defaultCardsType = "default_cards"
)

// Card is the subset of Scryfall card metadata the tracker stores.
type Card struct {
	ArenaID       int      `json:"arena_id"`
	Name          string   `json:"name"`
	ManaCost      string   `json:"mana_cost"`
	CMC           float64  `json:"cmc"`
	TypeLine      string   `json:"type_line"`
	Colors        []string `json:"colors"`
	ColorIdentity []string `json:"color_identity"`
	SetCode       string   `json:"set"`
	Rarity        string   `json:"rarity"`
	OracleText    string   `json:"oracle_text"`
	Power         string   `json:"power"`
	Toughness     string   `json:"toughness"`
	ScryfallID    string   `json:"id"`
	ImageURI      string   `json:"-"`
}

// bulkCard is the on-the-wire shape during bulk-file streaming; image URIs
// live in a nested object.
type bulkCard struct {
	Card
	ImageURIs struct {
		Normal string `json:"normal"`
	} `json:"image_uris"`
}

type bulkDataListing struct {
	Data []struct {
		Type        string `json:"type"`
		DownloadURI string `json:"download_uri"`
	} `json:"data"`
}

// BulkService answers batched card lookups from a locally indexed copy of
// Scryfall's default_cards bulk data.
type BulkService struct {
	cacheDir string
	baseURL  string
	client   *http.Client
	logger   *zap.Logger

	index  map[int]Card
	loaded bool
}

// NewBulkService creates the service; call EnsureBulkData before looking
// anything up.
func NewBulkService(cfg config.ScryfallConfig, logger *zap.Logger) *BulkService {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	return &BulkService{
		cacheDir: cfg.CacheDir,
		baseURL:  cfg.BaseURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		index:    make(map[int]Card),
	}
}

// EnsureBulkData makes sure the arena-id index is in memory: it loads the
// cached index if present, otherwise downloads the bulk file (unless already
// cached) and builds the index from it.
func (s *BulkService) EnsureBulkData(ctx context.Context, force bool) error {
	if s.loaded && !force {
		return nil
	}
	if !force && s.loadIndex() {
		return nil
	}

	bulkPath := filepath.Join(s.cacheDir, bulkFileName)
	if _, err := os.Stat(bulkPath); os.IsNotExist(err) || force {
		if err := s.downloadBulkData(ctx); err != nil {
			return err
		}
	}
	return s.buildIndex()
}

// LookupAll resolves a batch of grp ids in one call, returning the resolved
// cards and the ids that were not found. Misses are not errors; callers
// substitute deterministic placeholders.
func (s *BulkService) LookupAll(ids []int) (map[int]Card, []int) {
	found := make(map[int]Card, len(ids))
	var misses []int
	for _, id := range ids {
		if card, ok := s.index[id]; ok {
			found[id] = card
		} else {
			misses = append(misses, id)
		}
	}
	return found, misses
}

// Lookup resolves a single grp id.
func (s *BulkService) Lookup(id int) (Card, bool) {
	card, ok := s.index[id]
	return card, ok
}

func (s *BulkService) downloadBulkData(ctx context.Context) error {
	listingURL := s.baseURL + "/bulk-data"
	s.logger.Info("fetching Scryfall bulk data listing", zap.String("url", listingURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build bulk listing request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch bulk data listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bulk data listing returned status %d", resp.StatusCode)
	}

	var listing bulkDataListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("failed to decode bulk data listing: %w", err)
	}

	downloadURL := ""
	for _, item := range listing.Data {
		if item.Type == defaultCardsType {
			downloadURL = item.DownloadURI
			break
		}
	}
	if downloadURL == "" {
		return fmt.Errorf("no %s entry in Scryfall bulk data listing", defaultCardsType)
	}

	s.logger.Info("downloading Scryfall bulk data", zap.String("url", downloadURL))

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build bulk download request: %w", err)
	}
	dlResp, err := s.client.Do(dlReq)
	if err != nil {
		return fmt.Errorf("failed to download bulk data: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return fmt.Errorf("bulk data download returned status %d", dlResp.StatusCode)
	}

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	bulkPath := filepath.Join(s.cacheDir, bulkFileName)
	tmp, err := os.CreateTemp(s.cacheDir, bulkFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create bulk temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, dlResp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write bulk data: %w", err)
	}
	if err := os.Rename(tmp.Name(), bulkPath); err != nil {
		return fmt.Errorf("failed to move bulk data into place: %w", err)
	}

	s.logger.Info("bulk data downloaded",
		zap.Int64("bytes", written),
		zap.String("path", bulkPath),
	)
	return nil
}

// buildIndex streams the bulk JSON array and keeps only cards carrying an
// arena_id. The index is persisted so later runs skip the bulk file.
func (s *BulkService) buildIndex() error {
	bulkPath := filepath.Join(s.cacheDir, bulkFileName)
	f, err := os.Open(bulkPath)
	if err != nil {
		return fmt.Errorf("failed to open bulk data: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read bulk data array: %w", err)
	}

	s.index = make(map[int]Card)
	for dec.More() {
		var bc bulkCard
		if err := dec.Decode(&bc); err != nil {
			return fmt.Errorf("failed to decode bulk card entry: %w", err)
		}
		if bc.ArenaID == 0 {
			continue
		}
		card := bc.Card
		card.ImageURI = bc.ImageURIs.Normal
		s.index[bc.ArenaID] = card
	}

	s.loaded = true
	s.logger.Info("built arena-id card index", zap.Int("cards", len(s.index)))

	if err := s.saveIndex(); err != nil {
		// The index is a cache; failing to persist it is not fatal.
		s.logger.Warn("failed to persist card index", zap.Error(err))
	}
	return nil
}

func (s *BulkService) saveIndex() error {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return err
	}
	indexPath := filepath.Join(s.cacheDir, indexFileName)
	f, err := os.Create(indexPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(s.index)
}

func (s *BulkService) loadIndex() bool {
	indexPath := filepath.Join(s.cacheDir, indexFileName)
	f, err := os.Open(indexPath)
	if err != nil {
		return false
	}
	defer f.Close()

	index := make(map[int]Card)
	if err := json.NewDecoder(f).Decode(&index); err != nil {
		s.logger.Warn("failed to load cached card index; rebuilding", zap.Error(err))
		return false
	}
	s.index = index
	s.loaded = true
	s.logger.Info("loaded cached card index", zap.Int("cards", len(s.index)))
	return true
}
