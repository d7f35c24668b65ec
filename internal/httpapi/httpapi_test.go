package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symposium/internal/config"
	"symposium/internal/contextbuilder"
	"symposium/internal/eventbus"
	"symposium/internal/httpapi"
	"symposium/internal/llmprovider"
	"symposium/internal/llmprovider/testprovider"
	"symposium/internal/modelbudget"
	"symposium/internal/orchestrator"
	"symposium/internal/store"
	"symposium/internal/summary"
)

func newTestServer(t *testing.T) (*httpapi.Server, *testprovider.Provider) {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(dir, nil)
	require.NoError(t, err)

	catalog, err := modelbudget.Load()
	require.NoError(t, err)
	builder := contextbuilder.New(catalog, 0)

	reg := llmprovider.NewRegistry()
	local := testprovider.New("local")
	reg.Register(local)

	bus := eventbus.New()
	gen := summary.New(builder, bus)

	tunables, err := config.NewTunablesStore(dir + "/tunables.yaml")
	require.NoError(t, err)

	o := orchestrator.New(st, bus, reg, builder, gen, tunables, nil)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return httpapi.NewServer(o, st, tunables, nil), local
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreateDiscussionReturns201(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.NewApp("http://localhost:3000")

	payload, _ := json.Marshal(map[string]interface{}{
		"topic": "Is coffee healthy?", "models": []string{"local/a", "local/b"},
		"summaryModel": "local/a", "maxRounds": 2,
	})
	req := httptest.NewRequest(http.MethodPost, "/discussions/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Is coffee healthy?", data["topic"])
}

func TestCreateDiscussionRejectsInvalidRequest(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.NewApp("http://localhost:3000")

	payload, _ := json.Marshal(map[string]interface{}{
		"topic": "", "models": []string{"local/a"}, "summaryModel": "local/a", "maxRounds": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/discussions/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestGetMissingDiscussionReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.NewApp("http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/discussions/does-not-exist", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartTwiceReturns409(t *testing.T) {
	s, p := newTestServer(t)
	app := s.NewApp("http://localhost:3000")
	p.Script("a", testprovider.Response{Content: "A long enough response to pass the validation gate easily."})
	p.Script("b", testprovider.Response{Content: "Another long enough response to pass the validation gate."})

	payload, _ := json.Marshal(map[string]interface{}{
		"topic": "t", "models": []string{"local/a", "local/b"}, "summaryModel": "local/a", "maxRounds": 20,
	})
	req := httptest.NewRequest(http.MethodPost, "/discussions/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body := decodeEnvelope(t, resp)
	id := body["data"].(map[string]interface{})["id"].(string)

	start := httptest.NewRequest(http.MethodPost, "/discussions/"+id+"/start", nil)
	resp, err = app.Test(start)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	start2 := httptest.NewRequest(http.MethodPost, "/discussions/"+id+"/start", nil)
	resp, err = app.Test(start2)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	stop := httptest.NewRequest(http.MethodPost, "/discussions/"+id+"/stop", nil)
	app.Test(stop)
}

func TestExportRejectsIncompleteDiscussion(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.NewApp("http://localhost:3000")

	payload, _ := json.Marshal(map[string]interface{}{
		"topic": "t", "models": []string{"local/a", "local/b"}, "summaryModel": "local/a", "maxRounds": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/discussions/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body := decodeEnvelope(t, resp)
	id := body["data"].(map[string]interface{})["id"].(string)

	export := httptest.NewRequest(http.MethodGet, "/discussions/"+id+"/export?format=txt", nil)
	resp, err = app.Test(export)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOptimizePerformanceAppliesPreset(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.NewApp("http://localhost:3000")

	payload, _ := json.Marshal(map[string]string{"mode": "fast"})
	req := httptest.NewRequest(http.MethodPost, "/discussions/performance/optimize", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(8), data["maxContextMessages"])
}

func TestHealthReportsProviderStatus(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.NewApp("http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	providers := data["providers"].(map[string]interface{})
	assert.Equal(t, "ok", providers["local"])
}

func TestModelsReportsReachability(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.NewApp("http://localhost:3000")

	payload, _ := json.Marshal(map[string]interface{}{
		"topic": "t", "models": []string{"local/a", "local/b"}, "summaryModel": "local/a", "maxRounds": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/discussions/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body := decodeEnvelope(t, resp)
	id := body["data"].(map[string]interface{})["id"].(string)

	models := httptest.NewRequest(http.MethodGet, "/discussions/"+id+"/models", nil)
	resp, err = app.Test(models)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body = decodeEnvelope(t, resp)
	descriptors := body["data"].([]interface{})
	assert.Len(t, descriptors, 2)
	first := descriptors[0].(map[string]interface{})
	assert.Equal(t, true, first["reachable"])
}

func TestMessagesPagination(t *testing.T) {
	s, p := newTestServer(t)
	app := s.NewApp("http://localhost:3000")
	p.Script("a", testprovider.Response{Content: "A long enough response to pass the validation gate easily."})
	p.Script("b", testprovider.Response{Content: "Another long enough response to pass the validation gate."})

	payload, _ := json.Marshal(map[string]interface{}{
		"topic": "t", "models": []string{"local/a", "local/b"}, "summaryModel": "local/a", "maxRounds": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/discussions/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body := decodeEnvelope(t, resp)
	id := body["data"].(map[string]interface{})["id"].(string)

	msgs := httptest.NewRequest(http.MethodGet, "/discussions/"+id+"/messages?page=1&limit=1", nil)
	resp, err = app.Test(msgs)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body = decodeEnvelope(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["limit"])
	assert.Len(t, data["messages"], 1)
}
