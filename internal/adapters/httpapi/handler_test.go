package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"deckcore/internal/blob"
	"deckcore/internal/catalog"
	"deckcore/internal/core"
	"deckcore/internal/infra/persistence/memory"
	"deckcore/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var cards = catalog.New(
	domain.NewCard("bears", "Grizzly Bears", map[string][]string{"type": {"Creature"}, "cmc": {"2"}}),
	domain.NewCard("elves", "Llanowar Elves", map[string][]string{"type": {"Creature"}, "cmc": {"1"}}),
	domain.NewCard("bolt", "Lightning Bolt", map[string][]string{"type": {"Instant"}, "cmc": {"1"}}),
	domain.NewCard("forest", "Forest", map[string][]string{"type": {"Land"}, "cmc": {"0"}}),
)

type fixture struct {
	t      *testing.T
	svc    *core.Service
	router *gin.Engine
}

func newFixture(t *testing.T, opts ...core.Option) *fixture {
	t.Helper()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := []core.Option{
		core.WithDeckID("alpha"),
		core.WithHandSeed(1),
		core.WithInvariantChecks(true),
		core.WithClock(core.ClockFunc(func() time.Time { return at })),
	}
	svc := core.NewService(cards, append(base, opts...)...)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	h := NewHandler(svc, WithLogger(slog.New(slog.DiscardHandler)), WithMetrics(reg))
	return &fixture{t: t, svc: svc, router: h.Router()}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Contains(t, rec.Body.String(), `"deck_id":"alpha"`)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
}

func TestCardRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/deck/cards", CardsRequest{Cards: []CardRequest{{Key: "bears", Count: 3}, {Key: "forest", Count: 2}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, f.svc.Deck().Total())

	rec = f.do(http.MethodPost, "/api/v1/deck/cards", CardsRequest{Cards: []CardRequest{{Key: "bolt", Count: 1}, {Key: "ghost", Count: 1}}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CARD_NOT_FOUND", decode[ErrorResponse](t, rec).Code)
	assert.False(t, f.svc.Deck().Contains("bolt"), "batch is atomic")

	rec = f.do(http.MethodPost, "/api/v1/deck/cards", map[string]any{"cards": []map[string]any{{"key": "bolt", "count": 0}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/api/v1/deck/cards/bears", map[string]int{"count": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.svc.Deck().Count("bears"))

	rec = f.do(http.MethodGet, "/api/v1/deck/cards/bears", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.Entry](t, rec).Count)

	rec = f.do(http.MethodDelete, "/api/v1/deck/cards/forest?count=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode[map[string]any](t, rec)["removed"])

	rec = f.do(http.MethodGet, "/api/v1/deck/cards/forest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/deck/cards/bears?count=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/deck", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deck := decode[DeckResponse](t, rec)
	assert.Equal(t, "alpha", deck.DeckID)
	assert.Equal(t, 1, deck.Total)
	assert.Equal(t, 1, deck.Distinct)

	rec = f.do(http.MethodDelete, "/api/v1/deck", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.svc.Deck().Total())
}

func TestSortAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, key := range []string{"forest", "bears", "bolt"} {
		_, err := f.svc.AddCard(ctx, key, 1)
		require.NoError(t, err)
	}

	rec := f.do(http.MethodPost, "/api/v1/deck/sort", SortRequest{By: "name"})
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	for _, e := range decode[DeckResponse](t, rec).Entries {
		names = append(names, e.Card.Name)
	}
	assert.Equal(t, []string{"Forest", "Grizzly Bears", "Lightning Bolt"}, names)

	rec = f.do(http.MethodPost, "/api/v1/deck/sort", SortRequest{By: "attribute"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "attribute sort needs an attribute")
	rec = f.do(http.MethodPost, "/api/v1/deck/sort", SortRequest{By: "colour"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/deck/stats?attr=cmc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[core.Stats](t, rec)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{"0": 1, "1": 1, "2": 1}, stats.Histogram)
}

func TestCategoryRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddCards(ctx, []core.Quantity{{Key: "bears", Count: 2}, {Key: "elves", Count: 1}, {Key: "forest", Count: 3}})
	require.NoError(t, err)

	creatures := domain.CategorySpec{Name: "Creatures", Filter: domain.Leaf("type", domain.OpEquals, "creature")}
	rec := f.do(http.MethodPost, "/api/v1/categories", CategoryRequest{Spec: creatures})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode[domain.CategoryView](t, rec).Cards, 2)

	zero := 0
	lands := domain.CategorySpec{Name: "Lands", Filter: domain.Leaf("type", domain.OpEquals, "land")}
	rec = f.do(http.MethodPost, "/api/v1/categories", CategoryRequest{Spec: lands, Rank: &zero})
	require.Equal(t, http.StatusCreated, rec.Code)
	rank, err := f.svc.Deck().CategoryRank("Lands")
	require.NoError(t, err)
	assert.Equal(t, 0, rank)

	bad := domain.CategorySpec{Name: "Cheap", Filter: domain.Leaf("cmc", domain.OpLessThan, "two")}
	rec = f.do(http.MethodPost, "/api/v1/categories", CategoryRequest{Spec: bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	five := 5
	rec = f.do(http.MethodPost, "/api/v1/categories/Creatures/rank", RankRequest{Rank: &five})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "OUT_OF_RANGE", decode[ErrorResponse](t, rec).Code)

	rec = f.do(http.MethodPost, "/api/v1/categories/Creatures/rank", RankRequest{Rank: &zero})
	require.Equal(t, http.StatusOK, rec.Code)
	rank, _ = f.svc.Deck().CategoryRank("Creatures")
	assert.Equal(t, 0, rank)
	rec = f.do(http.MethodPost, "/api/v1/categories/Creatures/rank", RankRequest{Rank: &zero})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SAME_RANK", decode[ErrorResponse](t, rec).Code)

	rec = f.do(http.MethodPost, "/api/v1/categories/Creatures/exclude", OverrideRequest{Key: "elves"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["changed"])
	rec = f.do(http.MethodPost, "/api/v1/categories/Creatures/include", OverrideRequest{Key: "forest"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/categories/Creatures", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var keys []string
	for _, card := range decode[domain.CategoryView](t, rec).Cards {
		keys = append(keys, card.Key)
	}
	assert.ElementsMatch(t, []string{"bears", "forest"}, keys)

	renamed := creatures
	renamed.Name = "Lands"
	rec = f.do(http.MethodPut, "/api/v1/categories/Creatures", renamed)
	assert.Equal(t, http.StatusConflict, rec.Code)

	renamed.Name = "Beasts"
	rec = f.do(http.MethodPut, "/api/v1/categories/Creatures", renamed)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/categories/Creatures", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/categories/Beasts", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodDelete, "/api/v1/categories/Beasts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.CategoryView](t, rec)["categories"], 1)
}

func TestHandRoutes(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddCards(context.Background(), []core.Quantity{{Key: "bears", Count: 2}, {Key: "bolt", Count: 2}})
	require.NoError(t, err)

	size := 3
	rec := f.do(http.MethodPost, "/api/v1/hand", HandRequest{Size: &size})
	require.Equal(t, http.StatusOK, rec.Code)
	hand := decode[HandResponse](t, rec)
	assert.Len(t, hand.Cards, 3)
	assert.Equal(t, 4, hand.Pool)

	rec = f.do(http.MethodPost, "/api/v1/hand/draw", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[HandResponse](t, rec).Cards, 4)

	rec = f.do(http.MethodPost, "/api/v1/hand/draw", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "POOL_EXHAUSTED", decode[ErrorResponse](t, rec).Code)

	rec = f.do(http.MethodPost, "/api/v1/hand/mulligan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[HandResponse](t, rec).Cards, 3)

	rec = f.do(http.MethodPut, "/api/v1/hand/exclusions/bolt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodPost, "/api/v1/hand", HandRequest{Size: &size})
	require.Equal(t, http.StatusOK, rec.Code)
	hand = decode[HandResponse](t, rec)
	assert.Equal(t, 2, hand.Pool)
	assert.Equal(t, []string{"bolt"}, hand.Excluded)

	rec = f.do(http.MethodDelete, "/api/v1/hand/exclusions/bolt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["changed"])

	rec = f.do(http.MethodPost, "/api/v1/hand", map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPersistenceRoutes(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/v1/deck/save", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "no store configured")

	store := memory.NewStore()
	f = newFixture(t, core.WithStore(store))
	rec = f.do(http.MethodPost, "/api/v1/deck/load", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SNAPSHOT_NOT_FOUND", decode[ErrorResponse](t, rec).Code)

	_, err := f.svc.AddCard(context.Background(), "bolt", 4)
	require.NoError(t, err)
	rec = f.do(http.MethodPost, "/api/v1/deck/save", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	other := newFixture(t, core.WithStore(store))
	rec = other.do(http.MethodPost, "/api/v1/deck/load", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[DeckResponse](t, rec).Total)

	rec = other.do(http.MethodGet, "/api/v1/deck/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.Result](t, rec).HasBlocking())

	rec = other.do(http.MethodDelete, "/api/v1/deck/save", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = other.do(http.MethodDelete, "/api/v1/deck/save", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportRoutes(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/v1/exports", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	f = newFixture(t, core.WithArchive(blob.NewFakeS3()))
	_, err := f.svc.AddCard(context.Background(), "elves", 2)
	require.NoError(t, err)

	rec = f.do(http.MethodPost, "/api/v1/exports", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	info := decode[blob.Info](t, rec)
	assert.True(t, strings.HasPrefix(info.Key, "decks/alpha/"))

	rec = f.do(http.MethodPost, "/api/v1/exports", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "same clock, same key")

	rec = f.do(http.MethodGet, "/api/v1/exports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]blob.Info](t, rec)["exports"], 1)

	rec = f.do(http.MethodPost, "/api/v1/exports/share", ShareRequest{Key: info.Key, TTLSeconds: 60})
	require.Equal(t, http.StatusOK, rec.Code)
	shared := decode[map[string]any](t, rec)
	assert.Contains(t, shared["url"], "X-Amz-Expires=60")
	assert.Equal(t, float64(60), shared["expires_in"])

	_, err = f.svc.RemoveCard(context.Background(), "elves", 2)
	require.NoError(t, err)
	rec = f.do(http.MethodPost, "/api/v1/exports/import", ImportRequest{Key: info.Key})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[DeckResponse](t, rec).Total)

	rec = f.do(http.MethodPost, "/api/v1/exports/import", ImportRequest{Key: "decks/alpha/missing.json"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(http.MethodPost, "/api/v1/exports/import", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	bare := NewHandler(f.svc).Router()
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&domain.CardError{Op: "add", Key: "x", Err: domain.ErrCardNotFound}, http.StatusNotFound},
		{&domain.CategoryError{Op: "add", Name: "x", Err: domain.ErrCategoryExists}, http.StatusConflict},
		{&domain.CategoryError{Op: "swap ranks", Name: "x", Err: domain.ErrSameRank}, http.StatusConflict},
		{&domain.CategoryError{Op: "swap ranks", Name: "x", Err: domain.ErrRankOutOfRange}, http.StatusBadRequest},
		{&domain.CategoryError{Op: "add", Name: "x", Err: assert.AnError}, http.StatusBadRequest},
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{blob.ErrUnsupported, http.StatusNotImplemented},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestRoutesAreDocumented(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))

	param := regexp.MustCompile(`:(\w+)`)
	for _, route := range f.router.Routes() {
		path := param.ReplaceAllString(route.Path, "{$1}")
		ops, ok := doc.Paths[path]
		if assert.True(t, ok, "undocumented path %s", path) {
			assert.Contains(t, ops, strings.ToLower(route.Method), path)
		}
	}
}
