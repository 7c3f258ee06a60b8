package seed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hitokoto-go/hitokoto/internal/quote"
	"github.com/hitokoto-go/hitokoto/internal/store"
)

// newBundleServer serves a two-category catalog and counts how many times
// each category file is fetched.
func newBundleServer(t *testing.T, fetches *atomic.Int64) *httptest.Server {
	t.Helper()

	who := "someone"
	categories := map[string][]bundleSentence{
		"a": {
			{UUID: "a1", Text: "面朝大海，春暖花开", Type: "a", From: "海子"},
			{UUID: "a2", Text: "十字路口", Type: "a", From: "x", FromWho: &who},
		},
		"d": {
			{UUID: "d1", Text: "读书破万卷", Type: "d", From: "杜甫"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/version.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(catalog{
			UpdatedAt: 100,
			Sentences: []categoryMeta{
				{Key: "a", Name: "Anime", Timestamp: 100},
				{Key: "d", Name: "Literature", Timestamp: 100},
			},
		})
	})
	mux.HandleFunc("/sentences/", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/sentences/"), ".json")
		sentences, ok := categories[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(sentences)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newSeedStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitializeSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSeeder_ImportsCatalog(t *testing.T) {
	var fetches atomic.Int64
	ts := newBundleServer(t, &fetches)
	st := newSeedStore(t)

	s := New(st, Config{BaseURL: ts.URL, CacheDir: t.TempDir()}, nil)
	n, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("inserted %d, want 3", n)
	}

	got, err := st.GetByUUID(context.Background(), "a2")
	if err != nil {
		t.Fatal(err)
	}
	if got.FromWho != "someone" {
		t.Errorf("from_who = %q", got.FromWho)
	}
	if got.Length != 4 {
		t.Errorf("length = %d, want 4", got.Length)
	}
}

func TestSeeder_ReusesCache(t *testing.T) {
	var fetches atomic.Int64
	ts := newBundleServer(t, &fetches)
	cacheDir := t.TempDir()

	s := New(newSeedStore(t), Config{BaseURL: ts.URL, CacheDir: cacheDir}, nil)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fetches.Load() != 2 {
		t.Fatalf("first run fetched %d categories, want 2", fetches.Load())
	}

	// A second seeder over the same cache dir and a fresh store should
	// serve every category from disk.
	s = New(newSeedStore(t), Config{BaseURL: ts.URL, CacheDir: cacheDir}, nil)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fetches.Load() != 2 {
		t.Errorf("second run fetched from upstream, total fetches = %d", fetches.Load())
	}
}

func TestSeeder_RefusesNonEmptyStore(t *testing.T) {
	var fetches atomic.Int64
	ts := newBundleServer(t, &fetches)
	st := newSeedStore(t)

	if _, err := st.Insert(context.Background(), quote.Quote{
		Text: "十字路口", Category: quote.CategoryOriginal, Source: "MoYan",
	}); err != nil {
		t.Fatal(err)
	}

	s := New(st, Config{BaseURL: ts.URL, CacheDir: t.TempDir()}, nil)
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("seeding a non-empty corpus did not fail")
	}
	if fetches.Load() != 0 {
		t.Errorf("fetched %d categories before refusing", fetches.Load())
	}
}

func TestSeeder_UpstreamErrorAborts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	s := New(newSeedStore(t), Config{BaseURL: ts.URL, CacheDir: t.TempDir()}, nil)
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected catalog fetch error")
	}
}
