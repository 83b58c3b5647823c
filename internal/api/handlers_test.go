// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/adama-tourism/ml-engine/internal/artifacts"
	"github.com/adama-tourism/ml-engine/internal/config"
	"github.com/adama-tourism/ml-engine/internal/models"
	"github.com/adama-tourism/ml-engine/internal/recommend"
	"github.com/adama-tourism/ml-engine/internal/similarity"
	"github.com/adama-tourism/ml-engine/internal/trainer"
)

// fakeClient serves canned backend data, optionally blocking until released.
type fakeClient struct {
	items        []recommend.Item
	interactions []recommend.Interaction
	block        chan struct{}
}

func (f *fakeClient) FetchItems(ctx context.Context) ([]recommend.Item, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, nil
}

func (f *fakeClient) FetchInteractions(ctx context.Context) ([]recommend.Interaction, error) {
	return f.interactions, nil
}

type testServer struct {
	srv  *httptest.Server
	orch *trainer.Orchestrator
}

func newTestServer(t *testing.T, client trainer.DataClient, security config.SecurityConfig) *testServer {
	t.Helper()

	store, err := artifacts.NewStore(artifacts.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	alsCfg := recommend.ALSConfig{NumFactors: 4, NumIterations: 5, Regularization: 0.01, Alpha: 40, NumWorkers: 2}
	cf := recommend.NewEngine(store, alsCfg, zerolog.Nop())
	sim := similarity.NewEngine(store, similarity.DefaultMaxFeatures, zerolog.Nop())
	orch := trainer.NewOrchestrator(client, cf, sim, time.Minute, zerolog.Nop())

	h := NewHandler(cf, sim, orch, client, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(security, h))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, orch: orch}
}

func defaultFakeClient() *fakeClient {
	return &fakeClient{
		items: []recommend.Item{
			{ItemID: "lake", Title: "Lake Resort", Description: "boats fishing water", Tags: "nature"},
			{ItemID: "lodge", Title: "Lake Lodge", Description: "quiet water birds", Tags: "nature"},
			{ItemID: "museum", Title: "City Museum", Description: "history exhibits", Tags: "culture"},
		},
		interactions: []recommend.Interaction{
			{UserID: "alice", ItemID: "lake", Type: recommend.InteractionBook},
			{UserID: "alice", ItemID: "lodge", Type: recommend.InteractionView},
			{UserID: "bob", ItemID: "museum", Type: recommend.InteractionFavorite},
		},
	}
}

func (ts *testServer) waitTrained(t *testing.T) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for ts.orch.Running() {
		if time.Now().After(deadline) {
			t.Fatal("training did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, last := ts.orch.Status()
	if last == nil || last.State != trainer.JobSucceeded {
		t.Fatalf("training did not succeed: %+v", last)
	}
}

func (ts *testServer) do(t *testing.T, method, path string, headers map[string]string) (*http.Response, models.APIResponse) {
	t.Helper()

	req, err := http.NewRequest(method, ts.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope models.APIResponse
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	return resp, envelope
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{})

	resp, err := http.Get(ts.srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "ml-engine" {
		t.Errorf("body = %v, want status ok and service ml-engine", body)
	}
}

func TestRecommendUserNotTrained(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{})

	resp, envelope := ts.do(t, http.MethodGet, "/recommend/user/alice", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeModelNotTrained {
		t.Errorf("error = %+v, want code %s", envelope.Error, ErrCodeModelNotTrained)
	}
}

func TestRecommendUserInvalidN(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{})

	tests := []struct {
		name string
		path string
	}{
		{"zero", "/recommend/user/alice?n=0"},
		{"negative", "/recommend/user/alice?n=-3"},
		{"too large", "/recommend/user/alice?n=101"},
		{"not a number", "/recommend/user/alice?n=ten"},
		{"item endpoint too large", "/recommend/item/lake?n=51"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, envelope := ts.do(t, http.MethodGet, tt.path, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if envelope.Error == nil || envelope.Error.Code != ErrCodeValidation {
				t.Errorf("error = %+v, want code %s", envelope.Error, ErrCodeValidation)
			}
		})
	}
}

func TestTrainAndRecommend(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{})

	resp, envelope := ts.do(t, http.MethodPost, "/train", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /train status = %d, want 202", resp.StatusCode)
	}
	if envelope.Status != "success" {
		t.Errorf("envelope status = %q, want success", envelope.Status)
	}

	ts.waitTrained(t)

	resp, envelope = ts.do(t, http.MethodGet, "/recommend/user/alice?n=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /recommend/user status = %d, want 200", resp.StatusCode)
	}
	data, ok := envelope.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", envelope.Data)
	}
	if data["userId"] != "alice" {
		t.Errorf("userId = %v, want alice", data["userId"])
	}
	recs, ok := data["recommendations"].([]interface{})
	if !ok || len(recs) != 2 {
		t.Errorf("recommendations = %v, want 2 entries", data["recommendations"])
	}

	resp, envelope = ts.do(t, http.MethodGet, "/recommend/item/lake", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /recommend/item status = %d, want 200", resp.StatusCode)
	}
	data = envelope.Data.(map[string]interface{})
	similar, ok := data["similar"].([]interface{})
	if !ok || len(similar) == 0 {
		t.Fatalf("similar = %v, want non-empty", data["similar"])
	}
	first := similar[0].(map[string]interface{})
	if first["itemId"] != "lodge" {
		t.Errorf("most similar to lake = %v, want lodge", first["itemId"])
	}
}

func TestRecommendItemUnknownID(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{})
	ts.do(t, http.MethodPost, "/train", nil)
	ts.waitTrained(t)

	resp, envelope := ts.do(t, http.MethodGet, "/recommend/item/no-such-item", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data := envelope.Data.(map[string]interface{})
	similar, ok := data["similar"].([]interface{})
	if !ok {
		t.Fatalf("similar = %v (%T), want array", data["similar"], data["similar"])
	}
	if len(similar) != 0 {
		t.Errorf("similar = %v, want empty for unknown item", similar)
	}
}

func TestTrainConflict(t *testing.T) {
	client := defaultFakeClient()
	client.block = make(chan struct{})
	ts := newTestServer(t, client, config.SecurityConfig{})

	resp, _ := ts.do(t, http.MethodPost, "/train", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first POST /train status = %d, want 202", resp.StatusCode)
	}

	resp, envelope := ts.do(t, http.MethodPost, "/train", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second POST /train status = %d, want 409", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeTrainingInProgress {
		t.Errorf("error = %+v, want code %s", envelope.Error, ErrCodeTrainingInProgress)
	}

	// Let the run finish before the temp store is cleaned up.
	close(client.block)
	deadline := time.Now().Add(10 * time.Second)
	for ts.orch.Running() {
		if time.Now().After(deadline) {
			t.Fatal("training run did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{APIKey: "secret-key"})

	// Protected endpoint without key
	resp, envelope := ts.do(t, http.MethodGet, "/debug/status", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeUnauthorized {
		t.Errorf("error = %+v, want code %s", envelope.Error, ErrCodeUnauthorized)
	}

	// Wrong key
	resp, _ = ts.do(t, http.MethodGet, "/debug/status", map[string]string{"X-API-Key": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status with wrong key = %d, want 401", resp.StatusCode)
	}

	// Correct key
	resp, _ = ts.do(t, http.MethodGet, "/debug/status", map[string]string{"X-API-Key": "secret-key"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with key = %d, want 200", resp.StatusCode)
	}

	// Health bypasses authentication
	healthResp, err := http.Get(ts.srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	_ = healthResp.Body.Close()
	if healthResp.StatusCode != http.StatusOK {
		t.Errorf("health status without key = %d, want 200", healthResp.StatusCode)
	}
}

func TestDebugStatus(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{})

	resp, envelope := ts.do(t, http.MethodGet, "/debug/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	data := envelope.Data.(map[string]interface{})
	collab := data["collaborative"].(map[string]interface{})
	if collab["ready"] != false {
		t.Errorf("collaborative.ready = %v, want false before training", collab["ready"])
	}

	ts.do(t, http.MethodPost, "/train", nil)
	ts.waitTrained(t)

	_, envelope = ts.do(t, http.MethodGet, "/debug/status", nil)
	data = envelope.Data.(map[string]interface{})
	collab = data["collaborative"].(map[string]interface{})
	sim := data["similarity"].(map[string]interface{})
	if collab["ready"] != true || sim["ready"] != true {
		t.Errorf("engines not ready after training: %v", data)
	}
	training := data["training"].(map[string]interface{})
	if training["running"] != false {
		t.Errorf("training.running = %v, want false", training["running"])
	}
}

func TestDebugDataSample(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{})

	resp, envelope := ts.do(t, http.MethodGet, "/debug/data_sample", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	data := envelope.Data.(map[string]interface{})
	if data["item_count"].(float64) != 3 {
		t.Errorf("item_count = %v, want 3", data["item_count"])
	}
	if data["interaction_count"].(float64) != 3 {
		t.Errorf("interaction_count = %v, want 3", data["interaction_count"])
	}
	samples := data["item_sample"].([]interface{})
	if len(samples) != 3 {
		t.Errorf("item_sample has %d entries, want 3", len(samples))
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t, defaultFakeClient(), config.SecurityConfig{})

	resp, err := http.Get(ts.srv.URL + "/debug/status")
	if err != nil {
		t.Fatalf("GET /debug/status error = %v", err)
	}
	_ = resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}
