// Package seed imports the upstream sentences-bundle catalog into a quote
// store. Each catalog category is downloaded (or reused from an on-disk
// cache when still current) and handed to BulkInsert as one batch, so a
// category lands atomically or not at all.
//
// Seeding requires an empty corpus: stored quotes are immutable and the
// importer never truncates existing data.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hitokoto-go/hitokoto/internal/observability"
	"github.com/hitokoto-go/hitokoto/internal/quote"
	"github.com/hitokoto-go/hitokoto/internal/store"
)

// DefaultBundleURL is the upstream catalog root.
const DefaultBundleURL = "https://raw.githubusercontent.com/hitokoto-osc/sentences-bundle/master"

// catalog is the shape of version.json.
type catalog struct {
	UpdatedAt int64          `json:"updated_at"`
	Sentences []categoryMeta `json:"sentences"`
}

type categoryMeta struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// bundleSentence is one entry of a category file.
type bundleSentence struct {
	UUID    string  `json:"uuid"`
	Text    string  `json:"hitokoto"`
	Type    string  `json:"type"`
	From    string  `json:"from"`
	FromWho *string `json:"from_who"`
}

// cachedCategory is the on-disk cache format, stamped with the catalog
// timestamp it was downloaded for.
type cachedCategory struct {
	Timestamp int64            `json:"timestamp"`
	Sentences []bundleSentence `json:"sentences"`
}

// Config controls where the Seeder fetches from and caches to.
type Config struct {
	BaseURL  string        // defaults to DefaultBundleURL
	CacheDir string        // defaults to ./cache
	Client   *http.Client  // defaults to a client with a request timeout
}

// Seeder bulk-imports the catalog through the store's insert boundary.
type Seeder struct {
	store    store.Store
	client   *http.Client
	baseURL  string
	cacheDir string
	log      *observability.Logger
}

// New creates a Seeder over st.
func New(st store.Store, cfg Config, log *observability.Logger) *Seeder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBundleURL
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "cache"
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = observability.NewLogger("seed", nil)
	}
	return &Seeder{
		store:    st,
		client:   cfg.Client,
		baseURL:  cfg.BaseURL,
		cacheDir: cfg.CacheDir,
		log:      log,
	}
}

// Run imports every catalog category and returns the number of quotes
// inserted. The target corpus must be empty.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	if n, err := s.store.Count(ctx); err != nil {
		return 0, fmt.Errorf("seed: count existing: %w", err)
	} else if n > 0 {
		return 0, fmt.Errorf("seed: corpus already holds %d quotes; seeding requires an empty store", n)
	}

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return 0, fmt.Errorf("seed: create cache dir: %w", err)
	}

	var cat catalog
	if err := s.fetchJSON(ctx, s.baseURL+"/version.json", &cat); err != nil {
		return 0, fmt.Errorf("seed: fetch catalog: %w", err)
	}

	total := 0
	for _, meta := range cat.Sentences {
		sentences, err := s.categorySentences(ctx, meta)
		if err != nil {
			return total, fmt.Errorf("seed: category %q: %w", meta.Key, err)
		}

		quotes := make([]quote.Quote, 0, len(sentences))
		for _, sen := range sentences {
			q := quote.Quote{
				UUID:     sen.UUID,
				Text:     sen.Text,
				Category: quote.Category(sen.Type),
				Source:   sen.From,
			}
			if sen.FromWho != nil {
				q.FromWho = *sen.FromWho
			}
			quotes = append(quotes, q)
		}

		if err := s.store.BulkInsert(ctx, quotes); err != nil {
			return total, fmt.Errorf("seed: insert category %q: %w", meta.Key, err)
		}
		total += len(quotes)
		s.log.Info("seeded category", "key", meta.Key, "name", meta.Name, "count", len(quotes))
	}
	return total, nil
}

// categorySentences returns the sentences for one category, reusing the
// on-disk cache when it is at least as fresh as the catalog entry.
func (s *Seeder) categorySentences(ctx context.Context, meta categoryMeta) ([]bundleSentence, error) {
	cachePath := filepath.Join(s.cacheDir, meta.Key+".json")

	if raw, err := os.ReadFile(cachePath); err == nil {
		var cached cachedCategory
		if err := json.Unmarshal(raw, &cached); err == nil && cached.Timestamp >= meta.Timestamp {
			s.log.Debug("using cached category", "key", meta.Key)
			return cached.Sentences, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var sentences []bundleSentence
	if err := s.fetchJSON(ctx, s.baseURL+"/sentences/"+meta.Key+".json", &sentences); err != nil {
		return nil, err
	}

	cached, err := json.Marshal(cachedCategory{Timestamp: meta.Timestamp, Sentences: sentences})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(cachePath, cached, 0o644); err != nil {
		return nil, fmt.Errorf("write cache: %w", err)
	}
	return sentences, nil
}

func (s *Seeder) fetchJSON(ctx context.Context, url string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
