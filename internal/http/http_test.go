package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/retroboard/internal/board"
	"github.com/sujalbistaa/retroboard/internal/models"
	"github.com/sujalbistaa/retroboard/internal/store"
	"github.com/sujalbistaa/retroboard/internal/ws"
)

type stubAggregator struct {
	current *models.AggregateResult
	pending bool
}

func (a *stubAggregator) Current() (models.AggregateResult, bool) {
	if a.current == nil {
		return models.AggregateResult{}, false
	}
	return *a.current, true
}

func (a *stubAggregator) Trigger() bool {
	if a.pending {
		return false
	}
	a.pending = true
	return true
}

type testServer struct {
	router *gin.Engine
	hub    *ws.Hub
	agg    *stubAggregator
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, store.Migrate(db))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		sqlDB.Close()
	})

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	agg := &stubAggregator{}
	svc := board.NewService(store.New(db), board.NewBroadcaster(hub, nil, log), agg, log)
	socket := ws.NewEndpoint(hub, svc, ws.Options{AllowedOrigin: opts.CORSOrigin}, log)

	if opts.CreateRPS == 0 {
		opts.CreateRPS = 100
		opts.CreateBurst = 100
	}
	router := gin.New()
	SetupRoutes(ctx, router, &Env{Board: svc, Sessions: hub, Log: log}, socket, opts)
	return &testServer{router: router, hub: hub, agg: agg}
}

func (s *testServer) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateAndListItems(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := s.do(t, http.MethodPost, "/api/items", `{"category":"good","text":"retro started on time"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[board.ItemPayload](t, rec)
	assert.NotZero(t, created.Item.ID)
	assert.Equal(t, 0, created.Item.LikeCount)

	rec = s.do(t, http.MethodGet, "/api/items", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[board.ItemsPayload](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.Item.ID, list.Items[0].ID)
}

func TestCreateItem_Invalid(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := s.do(t, http.MethodPost, "/api/items", `{"category":"great","text":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.NotEmpty(t, body["fields"])

	rec = s.do(t, http.MethodPost, "/api/items", `{"category":"good"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/items", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateItem_RateLimited(t *testing.T) {
	s := newTestServer(t, Options{CreateRPS: 0.001, CreateBurst: 1})

	rec := s.do(t, http.MethodPost, "/api/items", `{"category":"good","text":"one"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/items", `{"category":"good","text":"two"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestToggleLikeAndUserLikes(t *testing.T) {
	s := newTestServer(t, Options{})

	created := decode[board.ItemPayload](t, s.do(t, http.MethodPost, "/api/items", `{"category":"feedback","text":"more demos"}`, nil))
	path := "/api/items/" + jsonID(created.Item.ID) + "/like"

	rec := s.do(t, http.MethodPost, path, `{"userId":"u1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	change := decode[models.LikeChange](t, rec)
	assert.Equal(t, models.ActionLiked, change.Action)
	assert.Equal(t, 1, change.Item.LikeCount)

	rec = s.do(t, http.MethodGet, "/api/users/u1/likes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	likes := decode[board.UserLikesPayload](t, rec)
	assert.Equal(t, []uint{created.Item.ID}, likes.ItemIDs)

	rec = s.do(t, http.MethodPost, path, `{"userId":"u1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	change = decode[models.LikeChange](t, rec)
	assert.Equal(t, models.ActionUnliked, change.Action)
	assert.Equal(t, 0, change.Item.LikeCount)

	likes = decode[board.UserLikesPayload](t, s.do(t, http.MethodGet, "/api/users/u1/likes", "", nil))
	assert.Empty(t, likes.ItemIDs)
	assert.NotNil(t, likes.ItemIDs)

	rec = s.do(t, http.MethodGet, "/api/items/"+jsonID(created.Item.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "more demos", decode[board.ItemPayload](t, rec).Item.Text)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/items/999", "", nil).Code)
}

func TestToggleLike_Errors(t *testing.T) {
	s := newTestServer(t, Options{})

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/items/abc/like", `{"userId":"u1"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/items/1/like", `{}`, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/items/999/like", `{"userId":"u1"}`, nil).Code)
}

func TestAggregateEndpoints(t *testing.T) {
	s := newTestServer(t, Options{AdminToken: "letmein"})

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/aggregate", "", nil).Code)

	s.agg.current = &models.AggregateResult{
		Summary:     "calm sprint",
		Sentiment:   models.NeutralSentiment(),
		GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	rec := s.do(t, http.MethodGet, "/api/aggregate", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"summary":"calm sprint","sentiment":{"overall":"neutral","positiveRatio":0.5,"keyEmotions":[]},"generatedAt":"2026-03-01T00:00:00Z"}`,
		rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/aggregate/trigger", "", nil).Code)
	assert.Equal(t, http.StatusForbidden,
		s.do(t, http.MethodPost, "/api/aggregate/trigger", "", http.Header{"X-Admin-Token": {"nope"}}).Code)

	rec = s.do(t, http.MethodPost, "/api/aggregate/trigger", "", http.Header{"X-Admin-Token": {"letmein"}})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"queued":true}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/aggregate/trigger", "", http.Header{"X-Admin-Token": {"letmein"}})
	assert.JSONEq(t, `{"queued":false}`, rec.Body.String())
}

func TestTriggerOpenWithoutAdminToken(t *testing.T) {
	s := newTestServer(t, Options{})
	assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/aggregate/trigger", "", nil).Code)
}

func TestHealthAndHeaders(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := s.do(t, http.MethodGet, "/healthz", "", http.Header{"X-Request-Id": {"req-42"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, rec.Body.String())

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIPRateLimiter_Evict(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	rl.GetLimiter("10.0.0.1")
	rl.GetLimiter("10.0.0.2")
	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)

	rl.evict(time.Now().Add(-visitorTTL))

	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestWebSocket_RestMutationsReachEverySession(t *testing.T) {
	s := newTestServer(t, Options{})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		conns = append(conns, conn)

		first := readFrame(t, conn)
		require.Equal(t, ws.EventInitialItems, first.Type)
		assert.JSONEq(t, `{"items":[]}`, string(first.Data))
	}
	require.Eventually(t, func() bool { return s.hub.Sessions() == 2 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/items", "application/json", strings.NewReader(`{"category":"improve","text":"slow reviews"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, conn := range conns {
		got := readFrame(t, conn)
		require.Equal(t, ws.EventItemCreated, got.Type)
		var payload board.ItemPayload
		require.NoError(t, got.Decode(&payload))
		assert.Equal(t, "slow reviews", payload.Item.Text)
	}

	// A socket toggle is broadcast to both sessions, the sender included.
	require.NoError(t, conns[0].WriteJSON(map[string]any{
		"type": ws.EventToggleLike,
		"data": map[string]any{"itemId": 1, "userId": "alice"},
	}))
	for _, conn := range conns {
		got := readFrame(t, conn)
		require.Equal(t, ws.EventItemLikeChanged, got.Type)
		var change models.LikeChange
		require.NoError(t, got.Decode(&change))
		assert.Equal(t, "alice", change.ActingUserID)
		assert.Equal(t, 1, change.Item.LikeCount)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func jsonID(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
