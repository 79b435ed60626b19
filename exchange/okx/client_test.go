package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rank(id string, aum interface{}) map[string]interface{} {
	return map[string]interface{}{
		"uniqueCode":       id,
		"nickName":         "nick-" + id,
		"ccy":              "USDT",
		"leadDays":         "12",
		"copyTraderNum":    8,
		"maxCopyTraderNum": "100",
		"portLink":         "https://static.okx.com/" + id + ".png",
		"aum":              aum,
		"pnl":              "0",
		"traderInsts":      []string{"BTC-USDT-SWAP"},
	}
}

// fakeOKX 模拟排行榜：total 个带单员，按每页20条分页
type fakeOKX struct {
	total      int
	rankCalls  atomic.Int32
	override   map[int][]map[string]interface{}
	statsCode  interface{}
	assetParts []map[string]interface{}
}

func (f *fakeOKX) server(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(leadTradersPath, func(w http.ResponseWriter, r *http.Request) {
		f.rankCalls.Add(1)
		assert.Equal(t, "SWAP", r.URL.Query().Get("instType"))
		assert.Equal(t, "overview", r.URL.Query().Get("sortType"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		totalPage := (f.total + PageSize - 1) / PageSize
		ranks := []map[string]interface{}{}
		if rows, ok := f.override[page]; ok {
			ranks = rows
		} else {
			for i := (page - 1) * PageSize; i < f.total && i < page*PageSize; i++ {
				ranks = append(ranks, rank(fmt.Sprintf("T%03d", i+1), fmt.Sprintf("%d.5", i)))
			}
		}
		writeJSON(w, map[string]interface{}{
			"code": "0",
			"data": []interface{}{map[string]interface{}{"totalPage": strconv.Itoa(totalPage), "ranks": ranks}},
		})
	})
	mux.HandleFunc(publicStatsPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("lastDays"))
		code := f.statsCode
		if code == nil {
			code = "0"
		}
		if r.URL.Query().Get("uniqueCode") == "EMPTY" {
			writeJSON(w, map[string]interface{}{"code": code, "data": []interface{}{}})
			return
		}
		writeJSON(w, map[string]interface{}{
			"code": code,
			"msg":  "",
			"data": []interface{}{map[string]interface{}{
				"ccy": "USDT", "winRatio": "0.55", "profitDays": "3", "lossDays": 1,
				"avgSubPosNotional": "120.5", "investAmt": "3000", "curCopyTraderPnl": "-12.25",
			}},
		})
	})
	mux.HandleFunc(tradeDataPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SWAP", r.URL.Query().Get("bizType"))
		writeJSON(w, map[string]interface{}{
			"code": 0,
			"data": []interface{}{map[string]interface{}{"nonPeriodicPart": f.assetParts}},
		})
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListTopTradersPaginates(t *testing.T) {
	f := &fakeOKX{total: 100}
	c := f.server(t)

	top, err := c.ListTopTraders(context.Background(), 45)
	require.NoError(t, err)
	require.Len(t, top, 45)
	assert.Equal(t, int32(3), f.rankCalls.Load())
	for i, tr := range top {
		assert.Equal(t, i+1, tr.Position)
	}
	assert.Equal(t, 3, top[44].Page)
	assert.Equal(t, "T045", top[44].InstID)
	assert.Equal(t, 12, top[0].LeadDays)
	assert.Equal(t, 0.5, top[0].Aum)
}

func TestListTopTradersStopsAtTotalPage(t *testing.T) {
	f := &fakeOKX{total: 25}
	c := f.server(t)

	top, err := c.ListTopTraders(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, top, 25)
	assert.Equal(t, int32(2), f.rankCalls.Load())

	_, err = c.ListTopTraders(context.Background(), 0)
	assert.Error(t, err)
}

func TestValidationErrorNamesFieldAndRow(t *testing.T) {
	rows := []map[string]interface{}{rank("A", "1"), rank("B", "1"), rank("C", "1"), rank("D", "not-a-number")}
	f := &fakeOKX{total: 4, override: map[int][]map[string]interface{}{1: rows}}
	c := f.server(t)

	_, err := c.ListTopTraders(context.Background(), 10)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 3, verr.Row)
	assert.Equal(t, "aum", verr.Field)
	assert.Contains(t, err.Error(), "ranks[3].aum")

	missing := rank("E", "1")
	delete(missing, "nickName")
	f = &fakeOKX{total: 1, override: map[int][]map[string]interface{}{1: {missing}}}
	_, err = f.server(t).ListTopTraders(context.Background(), 10)
	assert.Contains(t, err.Error(), "missing ranks[0].nickName")

	bad := rank("F", "1")
	bad["traderInsts"] = []string{"BTC-USDT-SWAP", ""}
	f = &fakeOKX{total: 1, override: map[int][]map[string]interface{}{1: {bad}}}
	_, err = f.server(t).ListTopTraders(context.Background(), 10)
	assert.Contains(t, err.Error(), "ranks[0].traderInsts")
}

func TestLookupTrader(t *testing.T) {
	f := &fakeOKX{total: 60}
	c := f.server(t)

	tr, err := c.LookupTrader(context.Background(), "T022")
	require.NoError(t, err)
	assert.Equal(t, "nick-T022", tr.NickName)
	assert.Equal(t, int32(2), f.rankCalls.Load())

	_, err = c.LookupTrader(context.Background(), "NOPE")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"NOPE"}, nf.IDs)
}

func TestLeadTraderMap(t *testing.T) {
	f := &fakeOKX{total: 100}
	c := f.server(t)

	m, err := c.LeadTraderMap(context.Background(), []string{"T002", "T030"})
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Equal(t, "nick-T030", m["T030"].NickName)
	// 找齐后提前结束
	assert.Equal(t, int32(2), f.rankCalls.Load())

	_, err = c.LeadTraderMap(context.Background(), []string{"T001", "X", "Y"})
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"X", "Y"}, nf.IDs)

	m, err = c.LeadTraderMap(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestFetchStats(t *testing.T) {
	f := &fakeOKX{total: 1}
	c := f.server(t)

	s, err := c.FetchStats(context.Background(), "T001")
	require.NoError(t, err)
	assert.Equal(t, 0.55, s.WinRatio)
	assert.Equal(t, 3, s.ProfitDays)
	assert.Equal(t, 1, s.LossDays)
	assert.Equal(t, 3000.0, s.InvestAmt)
	assert.Equal(t, -12.25, s.CurCopyTraderPnl)

	_, err = c.FetchStats(context.Background(), "EMPTY")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestBusinessError(t *testing.T) {
	f := &fakeOKX{total: 1, statsCode: "51000"}
	c := f.server(t)

	_, err := c.FetchStats(context.Background(), "T001")
	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "51000", be.Code)

	// 数字 0 同样视为成功
	f = &fakeOKX{total: 1, statsCode: 0}
	_, err = f.server(t).FetchStats(context.Background(), "T001")
	assert.NoError(t, err)
}

func TestHTTPError(t *testing.T) {
	f := &fakeOKX{}
	c := f.server(t)

	_, err := c.get(context.Background(), "broken", "/broken", nil)
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadGateway, he.Status)
	assert.Contains(t, he.Body, "upstream down")
}

func TestFetchTraderAsset(t *testing.T) {
	f := &fakeOKX{assetParts: []map[string]interface{}{
		{"functionId": "pnl", "value": "5"},
		{"functionId": "asset", "value": "1234.56"},
	}}
	c := f.server(t)

	asset, err := c.FetchTraderAsset(context.Background(), "T001")
	require.NoError(t, err)
	assert.Equal(t, 1234.56, asset)

	f = &fakeOKX{assetParts: []map[string]interface{}{{"functionId": "pnl", "value": "5"}}}
	_, err = f.server(t).FetchTraderAsset(context.Background(), "T001")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "nonPeriodicPart[asset]")
}

func TestParseNumber(t *testing.T) {
	cases := map[string]struct {
		raw string
		ok  bool
		n   float64
	}{
		"number":       {`12.5`, true, 12.5},
		"string":       {`"7"`, true, 7},
		"empty string": {`""`, false, 0},
		"junk":         {`"abc"`, false, 0},
		"inf":          {`"Infinity"`, false, 0},
		"nan":          {`"NaN"`, false, 0},
		"bool":         {`true`, false, 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			n, ok := parseNumber(json.RawMessage(tc.raw))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.n, n)
		})
	}
}

func TestIntegerRejectsOutOfRange(t *testing.T) {
	cases := map[string]struct {
		raw string
		ok  bool
		n   int
	}{
		"truncates":   {`"12.9"`, true, 12},
		"negative":    {`-3`, true, -3},
		"huge string": {`"1e30"`, false, 0},
		"huge number": {`-1e300`, false, 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := newRow("rank", 4, json.RawMessage(`{"leadDays":`+tc.raw+`}`))
			require.NoError(t, err)

			n, err := r.integer("leadDays")
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.n, n)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "leadDays", verr.Field)
			assert.Equal(t, 4, verr.Row)
		})
	}
}
