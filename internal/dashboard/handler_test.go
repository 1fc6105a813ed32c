package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisegate/internal/logger"
	"wisegate/internal/normalize"
	"wisegate/internal/realtime"
	"wisegate/internal/storage"
)

type latestCall struct {
	table string
	field string
	limit int
}

type fakeRepo struct {
	calls  []latestCall
	points map[string][]storage.Point
	err    error
}

func (r *fakeRepo) Latest(_ context.Context, table string, _ normalize.Kind, field string, limit int) ([]storage.Point, error) {
	r.calls = append(r.calls, latestCall{table: table, field: field, limit: limit})
	if r.err != nil {
		return nil, r.err
	}
	return r.points[field], nil
}

func setupRouter(t *testing.T, repo *fakeRepo) (*gin.Engine, *realtime.Recent) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recent := realtime.NewRecent(10)
	h := NewHandler(repo, Source{Table: "iotdata.wise2200_data", Kind: normalize.KindRegister}, 100, recent, nil, logger.NopLogger())

	router := gin.New()
	h.RegisterRoutes(router)
	return router, recent
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	router, _ := setupRouter(t, &fakeRepo{})
	w := do(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Gateway Running")
}

func TestSearch(t *testing.T) {
	router, _ := setupRouter(t, &fakeRepo{})
	w := do(router, http.MethodPost, "/search", `{"target":""}`)
	require.Equal(t, http.StatusOK, w.Code)

	var fields []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields))
	assert.Contains(t, fields, "temp")
	assert.Contains(t, fields, "humidity")
	assert.Contains(t, fields, "rssi")
	assert.NotContains(t, fields, "devaddr")
}

func TestQuery(t *testing.T) {
	ts := time.Date(2025, 5, 30, 4, 23, 0, 0, time.UTC)
	repo := &fakeRepo{points: map[string][]storage.Point{
		"temp": {{Value: 25.3, Time: ts}, {Value: 25.1, Time: ts.Add(-time.Minute)}},
	}}
	router, _ := setupRouter(t, repo)

	w := do(router, http.MethodPost, "/query", `{"targets":[{"target":"temp"},{"target":"temp; DROP TABLE x"},{"target":"humidity"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got []struct {
		Target     string      `json:"target"`
		Datapoints [][]float64 `json:"datapoints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, "temp", got[0].Target)
	require.Len(t, got[0].Datapoints, 2)
	assert.Equal(t, 25.3, got[0].Datapoints[0][0])
	assert.Equal(t, float64(ts.UnixMilli()), got[0].Datapoints[0][1])

	assert.Equal(t, "humidity", got[1].Target)
	assert.Empty(t, got[1].Datapoints)
	assert.Contains(t, w.Body.String(), `"datapoints":[]`)

	require.Len(t, repo.calls, 2)
	assert.Equal(t, latestCall{table: "iotdata.wise2200_data", field: "temp", limit: 100}, repo.calls[0])
}

func TestQuery_BadBody(t *testing.T) {
	router, _ := setupRouter(t, &fakeRepo{})
	w := do(router, http.MethodPost, "/query", `{"targets":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestQuery_RepositoryError(t *testing.T) {
	router, _ := setupRouter(t, &fakeRepo{err: errors.New("connection reset")})
	w := do(router, http.MethodPost, "/query", `{"targets":[{"target":"temp"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "STORAGE_ERROR")
}

func TestPushAndRecent(t *testing.T) {
	router, recent := setupRouter(t, &fakeRepo{})

	w := do(router, http.MethodPost, "/io_log", `{"ai3":512,"ai_st3":0,"t":"2025-05-30T04:23:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(router, http.MethodPost, "/sys_log", `{"event":"reboot"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPost, "/sys_log", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 2, recent.Len())

	w = do(router, http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, w.Code)

	var entries []struct {
		Source string         `json:"source"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "io_log", entries[0].Source)
	assert.Equal(t, "sys_log", entries[1].Source)
	assert.Equal(t, "reboot", entries[1].Data["event"])
}

func TestAnalog(t *testing.T) {
	router, recent := setupRouter(t, &fakeRepo{})
	recent.Add("mqtt_data", normalize.MergedRecord{})

	do(router, http.MethodPost, "/io_log", `{"ai3":512,"ai_st3":0,"t":"2025-05-30T04:23:00Z"}`)
	do(router, http.MethodPost, "/io_log", `{"ai3":100}`)
	do(router, http.MethodPost, "/io_log", `{"ai3":7,"ai_st3":1}`)

	w := do(router, http.MethodGet, "/api/analog/3", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, 512.0, got[0]["ai"])
	assert.Equal(t, "2025-05-30T04:23:00Z", got[0]["timestamp"])
	assert.Equal(t, 7.0, got[1]["ai"])
	assert.NotEmpty(t, got[1]["timestamp"])

	w = do(router, http.MethodGet, "/api/analog/x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
