package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potholewatch/internal/config"
	"potholewatch/internal/httputil"
	"potholewatch/internal/inference"
	"potholewatch/internal/logger"
	"potholewatch/internal/middleware"
	"potholewatch/internal/model"
	"potholewatch/internal/repository/sqlite"
	"potholewatch/internal/service/live"
	"potholewatch/internal/service/notification"
	"potholewatch/internal/service/pothole"
	"potholewatch/internal/service/realtime"
	"potholewatch/internal/service/settings"
	"potholewatch/internal/service/storage"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l := logger.NewTestLogger(t.TempDir(), io.Discard)
	t.Cleanup(func() { l.Close() })
	return l
}

func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func postJSON(h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// ============================================================
// Detection proxies
// ============================================================

func TestProxies_PostOnly(t *testing.T) {
	h := YOLODetectionHandler(httputil.NewMockHTTPClient(), inference.Defaults{}, testLogger(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/yolo-detection", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = get(h, "/yolo-detection")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRoboflowDetect_ConvertsCenteredBoxes(t *testing.T) {
	client := httputil.NewMockHTTPClient().AddResponse(http.StatusOK,
		`{"predictions":[{"x":50,"y":40,"width":20,"height":10,"confidence":0.9,"class":"pothole"}],"image":{"width":640,"height":480}}`)
	defaults := inference.Defaults{RoboflowAPIKey: "key", RoboflowBaseURL: "https://detect.example.com"}
	h := RoboflowDetectHandler(client, defaults, testLogger(t))

	rec := postJSON(h, "/roboflow-detect", `{"imageData":"QUJD","modelId":"pothole-model","version":"2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Detections []map[string]interface{} `json:"detections"`
		Image      map[string]int           `json:"image"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Detections, 1)
	d := body.Detections[0]
	assert.Equal(t, 40.0, d["x"])
	assert.Equal(t, 35.0, d["y"])
	assert.Equal(t, 20.0, d["width"])
	assert.Equal(t, 10.0, d["height"])
	assert.Equal(t, "pothole", d["class"])
	assert.Equal(t, "high", d["severity"])
	assert.NotContains(t, d, "label")
	assert.Equal(t, 640, body.Image["width"])

	req, _ := client.Request(0)
	require.NotNil(t, req)
	assert.Equal(t, "/pothole-model/2", req.URL.Path)
	assert.Equal(t, "key", req.URL.Query().Get("api_key"))
	assert.Equal(t, "QUJD", req.URL.Query().Get("image"))
}

func TestRoboflowDetect_Errors(t *testing.T) {
	tests := []struct {
		name     string
		defaults inference.Defaults
		body     string
		want     string
	}{
		{
			name: "missing api key",
			body: `{"imageData":"QUJD","modelId":"m","version":"1"}`,
			want: "ROBOFLOW_API_KEY not configured",
		},
		{
			name:     "missing model",
			defaults: inference.Defaults{RoboflowAPIKey: "key"},
			body:     `{"imageData":"QUJD"}`,
			want:     "Model ID and version are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := httputil.NewMockHTTPClient()
			rec := postJSON(RoboflowDetectHandler(client, tt.defaults, testLogger(t)), "/roboflow-detect", tt.body)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, rec.Body.String())
			assert.Zero(t, client.RequestCount())
		})
	}
}

func TestYOLODetection_UnknownModelType(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	rec := postJSON(YOLODetectionHandler(client, inference.Defaults{}, testLogger(t)), "/yolo-detection",
		`{"imageData":"QUJD","modelType":"darknet"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"detections":[]}`, rec.Body.String())
	assert.Zero(t, client.RequestCount())
}

func TestYOLODetection_RequestCredentialsOverrideDefaults(t *testing.T) {
	client := httputil.NewMockHTTPClient().AddResponse(http.StatusOK,
		`[{"x":10,"y":20,"width":30,"height":40,"confidence":0.7,"label":"crack"}]`)
	defaults := inference.Defaults{CustomEndpoint: "http://default.local/predict", CustomAPIKey: "server"}
	h := YOLODetectionHandler(client, defaults, testLogger(t))

	rec := postJSON(h, "/yolo-detection",
		`{"imageData":"QUJD","modelType":"custom","modelEndpoint":"http://model.local/detect","apiKey":"client"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t,
		`{"detections":[{"x":10,"y":20,"width":30,"height":40,"confidence":0.7,"label":"crack","severity":"medium"}]}`,
		rec.Body.String())

	req, body := client.Request(0)
	require.NotNil(t, req)
	assert.Equal(t, "http://model.local/detect", req.URL.String())
	assert.Equal(t, "Bearer client", req.Header.Get("Authorization"))
	assert.JSONEq(t, `{"image":"QUJD"}`, string(body))
}

func TestYOLODetection_UpstreamError(t *testing.T) {
	client := httputil.NewMockHTTPClient().AddResponse(http.StatusServiceUnavailable, "down")
	defaults := inference.Defaults{RoboflowAPIKey: "key", RoboflowEndpoint: "https://detect.example.com/m/1"}

	rec := postJSON(YOLODetectionHandler(client, defaults, testLogger(t)), "/yolo-detection", `{"imageData":"QUJD"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "503")
}

func TestCustomPotholeDetection(t *testing.T) {
	client := httputil.NewMockHTTPClient().AddResponse(http.StatusOK,
		`{"detections":[{"bbox":{"x":1,"y":2,"width":3,"height":4},"score":0.3,"label":"pothole"}]}`)
	defaults := inference.Defaults{CustomEndpoint: "http://model.local/detect"}

	rec := postJSON(CustomPotholeDetectionHandler(client, defaults, testLogger(t)), "/custom-pothole-detection", `{"imageData":"QUJD"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t,
		`{"detections":[{"x":1,"y":2,"width":3,"height":4,"confidence":0.3,"severity":"low"}]}`,
		rec.Body.String())

	_, body := client.Request(0)
	assert.JSONEq(t, `{"inputs":"QUJD"}`, string(body))
}

func TestCustomPotholeDetection_NotConfigured(t *testing.T) {
	rec := postJSON(CustomPotholeDetectionHandler(httputil.NewMockHTTPClient(), inference.Defaults{}, testLogger(t)),
		"/custom-pothole-detection", `{"imageData":"QUJD"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Custom model endpoint not configured"}`, rec.Body.String())
}

// ============================================================
// Potholes
// ============================================================

func potholeService(t *testing.T) *pothole.Service {
	t.Helper()
	db := testDB(t)
	l := testLogger(t)
	hub := realtime.NewHubService(l)
	notifications := notification.NewService(sqlite.NewNotificationRepository(db), hub)
	return pothole.NewService(sqlite.NewPotholeRepository(db), notifications, hub, l)
}

func TestPotholes_CreateListGet(t *testing.T) {
	svc := potholeService(t)
	l := testLogger(t)
	list := PotholesHandler(svc, l)

	rec := postJSON(list, "/api/potholes",
		`{"latitude":28.61,"longitude":77.23,"severity":"high","title":"Deep pothole","vehicle_id":"BUS-7"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.Pothole
	decode(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.StatusPending, created.Status)

	rec = get(list, "/api/potholes?severity=high")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.Pothole
	decode(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	rec = get(list, "/api/potholes?severity=low")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = get(PotholeHandler(svc, l), "/api/potholes/get?id="+created.ID)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPotholes_Errors(t *testing.T) {
	svc := potholeService(t)
	l := testLogger(t)

	rec := postJSON(PotholesHandler(svc, l), "/api/potholes", `{"latitude":95,"longitude":0,"severity":"high","title":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(PotholesHandler(svc, l), "/api/potholes", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(PotholeHandler(svc, l), "/api/potholes/get")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(PotholeHandler(svc, l), "/api/potholes/get?id=missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(NearbyPotholesHandler(svc, l), "/api/potholes/nearby?lat=28.6")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPotholeStatus(t *testing.T) {
	svc := potholeService(t)
	l := testLogger(t)
	p, err := svc.Create(pothole.CreateInput{Latitude: 28.61, Longitude: 77.23, Severity: model.SeverityLow, Title: "Crack"})
	require.NoError(t, err)

	rec := postJSON(PotholeStatusHandler(svc, l), "/api/potholes/status?id="+p.ID, `{"status":"verified"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.Pothole
	decode(t, rec, &updated)
	assert.Equal(t, model.StatusVerified, updated.Status)

	rec = postJSON(PotholeStatusHandler(svc, l), "/api/potholes/status?id="+p.ID, `{"status":"filled"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNearbyPotholes(t *testing.T) {
	svc := potholeService(t)
	l := testLogger(t)
	_, err := svc.Create(pothole.CreateInput{Latitude: 28.6129, Longitude: 77.2295, Severity: model.SeverityMedium, Title: "Near"})
	require.NoError(t, err)
	_, err = svc.Create(pothole.CreateInput{Latitude: 28.7, Longitude: 77.3, Severity: model.SeverityMedium, Title: "Far"})
	require.NoError(t, err)

	rec := get(NearbyPotholesHandler(svc, l), "/api/potholes/nearby?lat=28.6130&lng=77.2296")
	require.Equal(t, http.StatusOK, rec.Code)
	var nearby []map[string]interface{}
	decode(t, rec, &nearby)
	assert.Len(t, nearby, 1)
}

// ============================================================
// Upload
// ============================================================

type fakeCodec struct{}

func (fakeCodec) Dimensions(data []byte) (int, int, error) {
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		return 0, 0, errors.New("not a jpeg")
	}
	return 640, 480, nil
}

func (fakeCodec) Annotate(data []byte, _ []model.ClassifiedDetection) ([]byte, error) {
	return append(append([]byte{}, data...), 'A'), nil
}

type stubBackend struct {
	raw []model.RawDetection
	err error
}

func (b stubBackend) Name() string { return "stub" }

func (b stubBackend) Detect(context.Context, inference.Image) ([]model.RawDetection, error) {
	return b.raw, b.err
}

func upload(t *testing.T, h http.Handler, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "road.jpg")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/detect/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadDetect(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}
	backend := stubBackend{raw: []model.RawDetection{
		{Label: "pothole", Score: 0.9, Box: model.Box{XMin: 100, YMin: 100, XMax: 200, YMax: 180}},
	}}
	h := UploadDetectHandler(func() inference.Backend { return backend }, fakeCodec{}, testLogger(t))

	rec := upload(t, h, jpeg)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body uploadResponse
	decode(t, rec, &body)
	assert.Equal(t, "stub", body.Backend)
	assert.Equal(t, 640, body.Width)
	assert.Equal(t, 480, body.Height)
	require.NotEmpty(t, body.Detections)
	assert.Equal(t, model.SeverityHigh, body.Detections[0].Severity)
	assert.NotEmpty(t, body.Image)
}

func TestUploadDetect_BackendFailureYieldsEmptyResult(t *testing.T) {
	h := UploadDetectHandler(func() inference.Backend {
		return stubBackend{err: errors.New("timeout")}
	}, fakeCodec{}, testLogger(t))

	rec := upload(t, h, []byte{0xFF, 0xD8, 0xFF, 0xD9})
	require.Equal(t, http.StatusOK, rec.Code)

	var body uploadResponse
	decode(t, rec, &body)
	assert.Empty(t, body.Detections)
}

func TestUploadDetect_Rejects(t *testing.T) {
	h := UploadDetectHandler(func() inference.Backend { return stubBackend{} }, fakeCodec{}, testLogger(t))

	rec := upload(t, h, []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(h, "/api/detect/upload", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(h, "/api/detect/upload")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ============================================================
// Snapshots
// ============================================================

func TestSnapshotView(t *testing.T) {
	l := testLogger(t)
	buffer := storage.NewBufferService(&config.Config{ImageDirectory: t.TempDir(), ImageBufferLimit: 5}, l)
	name, ok := buffer.Add([]byte{0xFF, 0xD8, 0xFF, 0xD9}, "BUS-1", model.SeverityHigh)
	require.True(t, ok)
	h := SnapshotViewHandler(buffer, l)

	rec := get(h, "/api/snapshots/view?image="+name)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, rec.Body.Bytes())

	buffer.Flush()
	rec = get(h, "/api/snapshots/view?image="+name)
	assert.Equal(t, http.StatusOK, rec.Code, "flushed snapshots are read from disk")

	assert.Equal(t, http.StatusBadRequest, get(h, "/api/snapshots/view").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/snapshots/view?image=../secret.jpg").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/api/snapshots/view?image=missing.jpg").Code)
}

// ============================================================
// Settings
// ============================================================

type mockResolver struct{}

func (mockResolver) Resolve(model.ModelSettings) inference.Backend { return inference.Mock{} }

func TestModelSettings(t *testing.T) {
	l := testLogger(t)
	svc := settings.NewService(sqlite.NewSettingsRepository(testDB(t)), mockResolver{},
		model.ModelSettings{ModelType: model.ModelLocal}, l)
	h := ModelSettingsHandler(svc, l)

	rec := get(h, "/api/settings/model")
	require.Equal(t, http.StatusOK, rec.Code)
	var current map[string]interface{}
	decode(t, rec, &current)
	assert.Equal(t, "local", current["model_type"])
	assert.Equal(t, false, current["has_api_key"])

	req := httptest.NewRequest(http.MethodPut, "/api/settings/model",
		strings.NewReader(`{"model_type":"Roboflow","model_endpoint":"https://detect.example.com/m/1","api_key":"secret"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved map[string]interface{}
	decode(t, rec, &saved)
	assert.Equal(t, "roboflow", saved["model_type"])
	assert.Equal(t, true, saved["has_api_key"])
	assert.NotContains(t, saved, "api_key")
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = postJSON(h, "/api/settings/model", `{"model_type":"tensorflow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================
// Auth, realtime and live
// ============================================================

func TestLogin(t *testing.T) {
	cfg := &config.Config{Password: "hunter2", JWTSecret: "secret"}
	h := LoginHandler(cfg, testLogger(t))

	form := func(password, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password="+password))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, form("wrong", "").Code)

	rec := form("hunter2", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = form("hunter2", "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.NoError(t, middleware.VerifyToken(cfg.JWTSecret, cookies[0].Value))
}

func TestLogout(t *testing.T) {
	rec := get(http.HandlerFunc(LogoutHandler), "/auth/logout")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestRealtime_UnknownTable(t *testing.T) {
	l := testLogger(t)
	rec := get(RealtimeHandler(realtime.NewHubService(l), l), "/api/realtime?tables=potholes,users")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"unknown table users"}`, rec.Body.String())
}

func TestLiveEndpoints(t *testing.T) {
	l := testLogger(t)
	ctrl := live.NewController(live.Options{
		Backend: func() inference.Backend { return inference.Mock{} },
		Logger:  l,
	})

	rec := get(LiveStateHandler(ctrl), "/api/live")
	require.Equal(t, http.StatusOK, rec.Code)
	var state live.State
	decode(t, rec, &state)
	assert.False(t, state.Streaming)
	assert.Equal(t, live.DefaultVehicleID, state.VehicleID)

	rec = postJSON(LiveStartHandler(ctrl, l), "/api/live/start", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no source configured")

	rec = postJSON(LiveLocationHandler(ctrl), "/api/live/location", `{"latitude":28.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(LiveLocationHandler(ctrl), "/api/live/location", `{"latitude":128.5,"longitude":77}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(LiveLocationHandler(ctrl), "/api/live/location", `{"latitude":28.5,"longitude":77.2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 28.5, ctrl.State().Location.Latitude)
	assert.Equal(t, 77.2, ctrl.State().Location.Longitude)
}

func TestHealth(t *testing.T) {
	rec := get(HealthHandler(time.Now(), func() string { return "mock" }), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mock", body["backend"])
}

// ============================================================
// Helpers
// ============================================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"", 5, 5},
		{"abc", 5, 5},
		{"0", 5, 5},
		{"-3", 5, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, atoiDefault(tt.input, tt.def), "atoiDefault(%q, %d)", tt.input, tt.def)
	}
}

func TestParseDate(t *testing.T) {
	assert.True(t, parseDate("").IsZero())
	assert.True(t, parseDate("not-a-date").IsZero())
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), parseDate("2024-03-15"))
	assert.True(t, parseDate("2024-03-15T10:30:00Z").Equal(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)))
}
