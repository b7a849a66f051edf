package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/havenlighting/provision-core/internal/ble"
	"github.com/havenlighting/provision-core/internal/infrastructure/config"
	"github.com/havenlighting/provision-core/internal/infrastructure/logging"
	"github.com/havenlighting/provision-core/internal/provision"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

// idleCentral blocks scans until cancelled and refuses connections.
type idleCentral struct{}

func (idleCentral) Scan(ctx context.Context, _ func(ble.Candidate)) error {
	<-ctx.Done()
	return nil
}

func (idleCentral) StopScan() error { return nil }

func (idleCentral) Connect(context.Context, string, time.Duration) (ble.Peripheral, error) {
	return nil, context.Canceled
}

type stubCloud struct{}

func (stubCloud) GetAPIKey(context.Context, string, int, string) (string, error) {
	return "key", nil
}

func (stubCloud) AddDeviceToLocation(context.Context, string, int, string) error {
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, context.CancelFunc) {
	t.Helper()

	logger := testLogger()
	engine, err := provision.New(provision.Deps{
		Central: idleCentral{},
		Cloud:   stubCloud{},
		Ledger:  provision.NewLedger(nil, logger),
		Logger:  logger,
		Options: provision.Options{Cooldown: 10 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("provision.New() error = %v", err)
	}

	s, err := New(Deps{
		Config:   config.APIConfig{},
		WS:       config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 60},
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}},
		Logger:   logger,
		Engine:   engine,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.runCtx = ctx
	s.hub = NewHub(s.wsCfg, logger)

	ts := httptest.NewServer(s.buildRouter())
	t.Cleanup(ts.Close)
	t.Cleanup(cancel)
	return s, ts, cancel
}

func signToken(t *testing.T, secret string, expiry time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "installer",
		"exp": time.Now().Add(expiry).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestHealth_NoAuthRequired(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/health", "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestAuth_Enforcement(t *testing.T) {
	_, ts, _ := newTestServer(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing token", token: "", want: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", want: http.StatusUnauthorized},
		{name: "wrong secret", token: signToken(t, "some-other-secret-32-bytes-long!!!!!", time.Hour), want: http.StatusUnauthorized},
		{name: "expired", token: signToken(t, testSecret, -time.Hour), want: http.StatusUnauthorized},
		{name: "valid", token: signToken(t, testSecret, time.Hour), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/status", tt.token, nil)
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestStatus_ReportsIdleEngine(t *testing.T) {
	_, ts, _ := newTestServer(t)
	token := signToken(t, testSecret, time.Hour)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/status", token, nil)
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "idle" {
		t.Errorf("engine status = %v, want idle", body["status"])
	}
	if body["running"] != false {
		t.Errorf("running = %v, want false", body["running"])
	}
}

func TestStartStopLoop(t *testing.T) {
	s, ts, _ := newTestServer(t)
	token := signToken(t, testSecret, time.Hour)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/provision/start", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}

	// Second start conflicts.
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/v1/provision/start", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/v1/provision/stop", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop status = %d, want 200", resp.StatusCode)
	}

	s.engine.Wait()
	if s.engine.IsRunning() {
		t.Error("engine still running after stop")
	}
}

func TestProvisionDevice_Validation(t *testing.T) {
	_, ts, _ := newTestServer(t)
	token := signToken(t, testSecret, time.Hour)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/provision/device", token,
		[]byte(`{"deviceName":"Haven-Mini-01F2"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing addr status = %d, want 400", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/v1/provision/device", token,
		[]byte(`{not json`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", resp.StatusCode)
	}
}

func TestLogs_SnapshotAndClear(t *testing.T) {
	s, ts, _ := newTestServer(t)
	token := signToken(t, testSecret, time.Hour)

	s.engine.Logs().Append("info", "test line")

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/logs", token, nil)
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	resp.Body.Close()
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/v1/logs", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear status = %d, want 204", resp.StatusCode)
	}
	if len(s.engine.Logs().Snapshot()) != 0 {
		t.Error("logs not cleared")
	}
}

func TestDevices_LedgerEndpoints(t *testing.T) {
	s, ts, _ := newTestServer(t)
	token := signToken(t, testSecret, time.Hour)

	s.engine.Ledger().Add(context.Background(), provision.LedgerEntry{
		MAC: "AABBCCDDEEF2", DeviceName: "Haven-Mini-01F2", LocationID: 1001,
	})

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/devices", token, nil)
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	resp.Body.Close()
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/v1/devices", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("reset status = %d, want 204", resp.StatusCode)
	}
	if s.engine.Ledger().Contains("AABBCCDDEEF2") {
		t.Error("ledger not reset")
	}
}

func TestAttempts_NotEnabled(t *testing.T) {
	_, ts, _ := newTestServer(t)
	token := signToken(t, testSecret, time.Hour)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/attempts", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history is disabled", resp.StatusCode)
	}
}

func TestWebSocket_TokenQueryAuth(t *testing.T) {
	s, ts, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	// Missing and invalid tokens are rejected during the handshake.
	for name, token := range map[string]string{
		"missing token": "",
		"wrong secret":  signToken(t, "another-secret-at-least-32-bytes!!!!", time.Hour),
	} {
		url := wsURL
		if token != "" {
			url += "?token=" + token
		}
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatalf("%s: dial should fail", name)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: handshake status = %v, want 401", name, resp)
		}
	}

	// A valid token in the query upgrades without an Authorization header.
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+signToken(t, testSecret, time.Hour), nil)
	if err != nil {
		t.Fatalf("dial with valid token: %v (resp %v)", err, resp)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for s.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := s.hub.ClientCount(); got != 1 {
		t.Errorf("hub client count = %d, want 1", got)
	}
}
