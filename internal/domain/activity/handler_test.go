package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Ping(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/logger/ping", nil), rec)

	require.NoError(t, h.Ping(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "2026-03-04T10:00:00Z", body["at"])
}

func TestHandler_ListActivity(t *testing.T) {
	svc, _ := newTestService()
	svc.Record(context.Background(), "created visit 1")
	svc.Record(context.Background(), "created visit 2")
	h := NewHandler(svc)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/logger/activity?limit=1", nil), rec)

	require.NoError(t, h.ListActivity(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data    []Entry           `json:"data"`
		Total   int               `json:"total"`
		HasMore bool              `json:"has_more"`
		Links   map[string]string `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.True(t, body.HasMore)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "created visit 2", body.Data[0].Description)
	assert.Equal(t, "/api/v1/logger/activity?limit=1&offset=1", body.Links["next"])
}
