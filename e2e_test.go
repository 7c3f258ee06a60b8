package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hitokoto-go/hitokoto/internal/admission"
	"github.com/hitokoto-go/hitokoto/internal/pool"
	"github.com/hitokoto-go/hitokoto/internal/seed"
	"github.com/hitokoto-go/hitokoto/internal/server"
	"github.com/hitokoto-go/hitokoto/internal/store"
)

// =============================================================================
// End-to-End Integration Tests
//
// These tests exercise the full pipeline with a mock sentences-bundle server:
// seed a SQLite corpus over HTTP, then serve it through the HTTP surface
// (directly and via the in-memory mirror) and verify the public API contract
// without any external network calls.
// =============================================================================

// mockBundleE2E serves a small catalog in the upstream sentences-bundle
// layout and tracks how many category files were fetched.
func mockBundleE2E(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	fetches := &atomic.Int64{}

	who := "海子"
	categories := map[string]string{
		"a": mustJSON(t, []map[string]any{
			{"uuid": "e2e-a1", "hitokoto": "我们都是小小的星辰", "type": "a", "from": "宇宙よりも遠い場所"},
		}),
		"d": mustJSON(t, []map[string]any{
			{"uuid": "e2e-d1", "hitokoto": "面朝大海，春暖花开", "type": "d", "from": "海子诗集", "from_who": &who},
			{"uuid": "e2e-d2", "hitokoto": "读书破万卷，下笔如有神", "type": "d", "from": "杜甫"},
		}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/version.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"updated_at":100,"sentences":[
			{"key":"a","name":"Anime","timestamp":100},
			{"key":"d","name":"Literature","timestamp":100}]}`)
	})
	mux.HandleFunc("/sentences/", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/sentences/"), ".json")
		body, ok := categories[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, fetches
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

// seedCorpus runs the full seed flow against the mock bundle and returns an
// open store over the resulting corpus.
func seedCorpus(t *testing.T) store.Store {
	t.Helper()
	bundle, _ := mockBundleE2E(t)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "e2e.db"), 4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.InitializeSchema(ctx); err != nil {
		t.Fatal(err)
	}

	s := seed.New(st, seed.Config{BaseURL: bundle.URL, CacheDir: t.TempDir()}, nil)
	n, err := s.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("seeded %d quotes, want 3", n)
	}
	return st
}

func TestE2E_SeedThenServe(t *testing.T) {
	st := seedCorpus(t)

	guarded := store.Guard(st, pool.New(4, 0))
	api := httptest.NewServer(server.New("127.0.0.1:0", guarded, nil, nil).Handler())
	defer api.Close()

	// Random pick restricted to literature.
	resp, err := http.Get(api.URL + "/?c=d")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /?c=d status = %d", resp.StatusCode)
	}

	var body struct {
		UUID      string  `json:"uuid"`
		Text      string  `json:"text"`
		Type      string  `json:"type"`
		From      string  `json:"from"`
		FromWho   *string `json:"from_who"`
		Length    int     `json:"length"`
		CreatedAt string  `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Type != "d" {
		t.Errorf("type = %q, want d", body.Type)
	}
	if body.Length != len([]rune(body.Text)) {
		t.Errorf("length = %d for %q", body.Length, body.Text)
	}
	if body.CreatedAt == "" {
		t.Error("created_at missing")
	}

	// Direct lookup of a seeded quote.
	resp2, err := http.Get(api.URL + "/e2e-d1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if err := json.NewDecoder(resp2.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.FromWho == nil || *body.FromWho != "海子" {
		t.Errorf("from_who = %v", body.FromWho)
	}

	// A category the corpus does not hold.
	resp3, err := http.Get(api.URL + "/?c=j")
	if err != nil {
		t.Fatal(err)
	}
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Errorf("GET /?c=j status = %d, want 404", resp3.StatusCode)
	}
}

func TestE2E_MirrorServesAfterStoreCloses(t *testing.T) {
	st := seedCorpus(t)

	mirror, err := store.LoadMirror(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	st.Close()

	api := httptest.NewServer(server.New("127.0.0.1:0", mirror, nil, nil).Handler())
	defer api.Close()

	seen := map[string]bool{}
	for range 60 {
		resp, err := http.Get(api.URL + "/")
		if err != nil {
			t.Fatal(err)
		}
		var body struct {
			UUID string `json:"uuid"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		seen[body.UUID] = true
	}
	if len(seen) != 3 {
		t.Errorf("uniform picks over 60 draws reached %d of 3 quotes", len(seen))
	}
}

func TestE2E_TextEncodeAndFilters(t *testing.T) {
	st := seedCorpus(t)

	api := httptest.NewServer(server.New("127.0.0.1:0", st, nil, nil).Handler())
	defer api.Close()

	resp, err := http.Get(api.URL + "/e2e-a1?encode=text")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if string(raw) != "我们都是小小的星辰" {
		t.Errorf("text body = %q", raw)
	}

	// Length band that only the longest quote satisfies.
	resp2, err := http.Get(api.URL + "/?min_length=10")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var body struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.UUID != "e2e-d2" {
		t.Errorf("min_length pick = %q, want e2e-d2", body.UUID)
	}
}

func TestE2E_AdmissionRejectsBurst(t *testing.T) {
	st := seedCorpus(t)

	api := httptest.NewServer(server.New("127.0.0.1:0", st, admission.NewWithBurst(1, 3), nil).Handler())
	defer api.Close()

	rejected := 0
	for range 20 {
		resp, err := http.Get(api.URL + "/")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			rejected++
		}
	}
	if rejected == 0 {
		t.Error("burst of 20 against a 3-token bucket was never rejected")
	}
}

func TestE2E_SecondSeedRefused(t *testing.T) {
	st := seedCorpus(t)
	bundle, _ := mockBundleE2E(t)

	s := seed.New(st, seed.Config{BaseURL: bundle.URL, CacheDir: t.TempDir()}, nil)
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("re-seeding a populated corpus did not fail")
	}

	if n, err := st.Count(context.Background()); err != nil || n != 3 {
		t.Errorf("corpus after refused seed: n=%d err=%v", n, err)
	}
}
