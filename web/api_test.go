package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadwatch/collector"
	"leadwatch/database"
	"leadwatch/exchange/okx"
	"leadwatch/series"
)

type fakeStore struct {
	ids      []string
	overview []*database.TraderOverview
	pingErr  error
}

func (f *fakeStore) ListWatchedIDs(context.Context) ([]string, error) { return f.ids, nil }
func (f *fakeStore) WatchedOverview(context.Context) ([]*database.TraderOverview, error) {
	return f.overview, nil
}
func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

type fakeRefresher struct {
	res *collector.Result
	err error
}

func (f *fakeRefresher) RunNow(context.Context) (*collector.Result, error) { return f.res, f.err }

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(_ context.Context, instID, resolution string) (*series.Series, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := series.Lookup(resolution); err != nil {
		return nil, err
	}
	return &series.Series{
		InstID:  instID,
		Watched: true,
		Info:    &database.TraderInfo{InstID: instID, NickName: "alice"},
		Series:  []series.Point{{Timestamp: 300000, Aum: 100, InvestAmt: 50}},
	}, nil
}

type fakeToggler struct {
	watched bool
	err     error
	got     string
}

func (f *fakeToggler) Toggle(_ context.Context, instID string) (bool, error) {
	f.got = instID
	return f.watched, f.err
}

type fakeTraders struct {
	limit int
}

func (f *fakeTraders) ListTopTraders(_ context.Context, limit int) ([]okx.TopTrader, error) {
	f.limit = limit
	return []okx.TopTrader{
		{LeadTrader: okx.LeadTrader{InstID: "A", NickName: "a"}, Page: 1, Position: 1},
		{LeadTrader: okx.LeadTrader{InstID: "B", NickName: "b"}, Page: 1, Position: 2},
	}, nil
}

func newTestRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, deps)
	return r
}

func do(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRefresh(t *testing.T) {
	ref := &fakeRefresher{res: &collector.Result{Status: "success", WatchedCount: 2, Timestamp: 300000, AlertsCount: 1}}
	r := newTestRouter(Deps{Refresher: ref})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := do(r, method, "/api/refresh", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "success", body["status"])
		assert.EqualValues(t, 2, body["watchedCount"])
		assert.EqualValues(t, 1, body["alertsCount"])
	}
}

func TestRefreshMessageFollowsAcceptLanguage(t *testing.T) {
	r := newTestRouter(Deps{Refresher: &fakeRefresher{res: &collector.Result{Status: "no_watched"}}})

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No watched traders", decode(t, w)["message"])
}

func TestParseAcceptLanguage(t *testing.T) {
	assert.Equal(t, "zh-CN", parseAcceptLanguage("zh-CN,zh;q=0.9"))
	assert.Equal(t, "en-US", parseAcceptLanguage("en;q=0.8"))
	assert.Equal(t, "", parseAcceptLanguage("fr-FR"))
	assert.Equal(t, "", parseAcceptLanguage(""))
}

func TestRefreshConflictAndFailure(t *testing.T) {
	r := newTestRouter(Deps{Refresher: &fakeRefresher{err: collector.ErrCycleInProgress}})
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/refresh", nil).Code)

	r = newTestRouter(Deps{Refresher: &fakeRefresher{err: errors.New("boom")}})
	w := do(r, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "boom", decode(t, w)["error"])
}

func TestGetTrader(t *testing.T) {
	r := newTestRouter(Deps{Resolver: &fakeResolver{}})

	w := do(r, http.MethodGet, "/api/trader/ABC?interval=1h", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, traderCacheControl, w.Header().Get("Cache-Control"))
	body := decode(t, w)
	assert.Equal(t, "ABC", body["instId"])
	assert.Equal(t, true, body["watched"])
	points := body["series"].([]interface{})
	require.Len(t, points, 1)
	assert.EqualValues(t, 300000, points[0].(map[string]interface{})["timestamp"])

	w = do(r, http.MethodGet, "/api/trader/ABC?interval=3m", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "1w")
}

func TestGetTraderNotFoundCodes(t *testing.T) {
	cases := map[string]error{
		"not_found": series.ErrNotFound,
		"no_data":   series.ErrNoData,
	}
	for code, err := range cases {
		t.Run(code, func(t *testing.T) {
			r := newTestRouter(Deps{Resolver: &fakeResolver{err: err}})
			w := do(r, http.MethodGet, "/api/trader/ABC", nil)
			require.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, code, decode(t, w)["code"])
		})
	}
}

func TestToggleWatch(t *testing.T) {
	tog := &fakeToggler{watched: true}
	r := newTestRouter(Deps{Watcher: tog})

	w := do(r, http.MethodPost, "/api/watch/toggle", []byte(`{"instId":" ABC "}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ABC", tog.got)
	assert.Equal(t, true, decode(t, w)["watched"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/watch/toggle", []byte(`{}`)).Code)

	tog.err = &okx.NotFoundError{Resource: "lead trader", IDs: []string{"ABC"}}
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/watch/toggle", []byte(`{"instId":"ABC"}`)).Code)
}

func TestListTradersMarksWatched(t *testing.T) {
	traders := &fakeTraders{}
	r := newTestRouter(Deps{Traders: traders, Store: &fakeStore{ids: []string{"B"}}})

	w := do(r, http.MethodGet, "/api/traders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, TopTradersLimit, traders.limit)

	top := decode(t, w)["top"].([]interface{})
	require.Len(t, top, 2)
	first, second := top[0].(map[string]interface{}), top[1].(map[string]interface{})
	assert.Equal(t, "A", first["instId"])
	assert.Equal(t, false, first["watched"])
	assert.Equal(t, true, second["watched"])
	assert.EqualValues(t, 2, second["position"])
}

func TestListWatched(t *testing.T) {
	store := &fakeStore{overview: []*database.TraderOverview{{
		InstID:  "A",
		Info:    &database.TraderInfo{InstID: "A", NickName: "alice"},
		Metrics: &database.MetricSample{InstID: "A", Ts: 600000, Aum: 10},
	}}}
	r := newTestRouter(Deps{Store: store})

	w := do(r, http.MethodGet, "/api/watch/list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0]["instId"])
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(Deps{Store: &fakeStore{}})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", nil).Code)

	r = newTestRouter(Deps{Store: &fakeStore{pingErr: errors.New("db down")}})
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/healthz", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(Deps{})
	w := do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
