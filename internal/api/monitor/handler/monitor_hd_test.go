package monitorHandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	monitorService "CraneGuard/internal/api/monitor/service"
	"CraneGuard/internal/entity"
	"CraneGuard/internal/middleware"
	"CraneGuard/internal/pipeline"
	"CraneGuard/internal/safety"
	"CraneGuard/internal/zone"
	"CraneGuard/pkg/camera"
	"CraneGuard/pkg/notify"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type stillFeed struct{}

func (stillFeed) Latest() (image.Image, bool) { return image.NewRGBA(image.Rect(0, 0, 8, 8)), true }
func (stillFeed) Err() error                  { return nil }
func (stillFeed) Close() error                { return nil }

func openStill(_ context.Context, sourceURL string) (camera.Feed, error) {
	if strings.Contains(sourceURL, "broken") {
		return nil, errors.New("connection refused")
	}
	return stillFeed{}, nil
}

// heldDetector blocks every call until release is closed.
type heldDetector struct {
	release chan struct{}
}

func (d *heldDetector) Detect(ctx context.Context, _ string) (entity.DetectionResult, error) {
	select {
	case <-d.release:
	case <-ctx.Done():
		return entity.DetectionResult{}, ctx.Err()
	}
	return entity.DetectionResult{HumanDetected: true, HumanCount: 2, Confidence: 88}, nil
}

type fixture struct {
	app     *fiber.App
	session *pipeline.Session
	det     *heldDetector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	zones := []entity.Zone{
		{ID: "zone1", Name: "Zone A", Location: "East Sector", CameraSourceURL: "http://cam-a"},
		{ID: "zone2", Name: "Zone B", Location: "West Sector", CameraSourceURL: "http://broken-b"},
	}
	registry, err := zone.NewRegistry(zones, "zone1")
	if err != nil {
		t.Fatal(err)
	}
	state, err := safety.New(safety.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	hub := notify.NewHub()
	det := &heldDetector{release: make(chan struct{})}
	coord := pipeline.NewCoordinator(det, state, registry, hub, logger)
	session := pipeline.NewSession(pipeline.SessionConfig{
		Registry:    registry,
		State:       state,
		Coordinator: coord,
		Opener:      openStill,
		Camera:      camera.Config{Interval: time.Hour, Width: 8, Height: 8},
		Logger:      logger,
	})
	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		select {
		case <-det.release:
		default:
			close(det.release)
		}
		session.Close()
	})

	mw := middleware.New(logger, middleware.Config{RatePerSecond: 1000, Burst: 1000})
	svc := monitorService.NewMonitorService(logger, session, hub)
	h := New(logger, validator.New(), mw, svc, "9090")

	app := fiber.New()
	app.Get("/", h.Dashboard)
	h.Start(app.Group("/api/v1"))
	return &fixture{app: app, session: session, det: det}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestListZones(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, "GET", "/api/v1/monitor/zones", "")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if out["activeZoneId"] != "zone1" {
		t.Errorf("activeZoneId = %v", out["activeZoneId"])
	}
	zones, _ := out["zones"].([]any)
	if len(zones) != 2 {
		t.Errorf("zones = %v", out["zones"])
	}
}

func TestSelectZone(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, "POST", "/api/v1/monitor/zones/zone2/select", "")
	if status != fiber.StatusOK || out["id"] != "zone2" {
		t.Fatalf("select zone2: status = %d body = %v", status, out)
	}

	// zone2's camera is unreachable: the source goes offline, the API still works.
	status, out = f.do(t, "GET", "/api/v1/monitor/status", "")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	source, _ := out["source"].(map[string]any)
	if source["status"] != string(camera.StatusOffline) || source["error"] == "" {
		t.Errorf("source = %v", source)
	}

	status, _ = f.do(t, "POST", "/api/v1/monitor/zones/zone9/select", "")
	if status != fiber.StatusNotFound {
		t.Errorf("unknown zone status = %d, want 404", status)
	}
}

func TestUpdateCamera(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, "PUT", "/api/v1/monitor/zones/zone2/camera", `{"cameraSourceUrl":"http://cam-b2/video"}`)
	if status != fiber.StatusOK || out["cameraSourceUrl"] != "http://cam-b2/video" {
		t.Fatalf("status = %d body = %v", status, out)
	}

	status, _ = f.do(t, "PUT", "/api/v1/monitor/zones/zone2/camera", `{"cameraSourceUrl":"ftp://nope"}`)
	if status != fiber.StatusBadRequest {
		t.Errorf("bad url status = %d, want 400", status)
	}

	status, out = f.do(t, "PUT", "/api/v1/monitor/zones/zone1/camera", `{"cameraSourceUrl":""}`)
	if status != fiber.StatusOK || out["cameraSourceUrl"] != nil {
		t.Errorf("clear camera: status = %d body = %v", status, out)
	}
}

func TestWeights(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, "PUT", "/api/v1/monitor/safety/current-weight", `{"currentWeight":15000}`)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d body = %v", status, out)
	}
	if out["hasAlert"] != true || out["weightOverload"] != true || out["headline"] != "⚠️ DANGER - STOP OPERATION" {
		t.Errorf("overload body = %v", out)
	}

	status, _ = f.do(t, "PUT", "/api/v1/monitor/safety/current-weight", `{"currentWeight":-5}`)
	if status != fiber.StatusBadRequest {
		t.Errorf("negative weight status = %d, want 400", status)
	}
	if got := f.session.Safety().Snapshot().CurrentWeight; got != 15000 {
		t.Errorf("current weight after rejected update = %v, want 15000", got)
	}

	status, _ = f.do(t, "PUT", "/api/v1/monitor/safety/current-weight", `{}`)
	if status != fiber.StatusBadRequest {
		t.Errorf("missing weight status = %d, want 400", status)
	}

	status, out = f.do(t, "PUT", "/api/v1/monitor/safety/max-weight", `{"maxWeight":5}`)
	if status != fiber.StatusOK || out["maxWeight"] != float64(100) {
		t.Errorf("clamped max weight: status = %d body = %v", status, out)
	}
}

func TestGetSafetyProtobuf(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/api/v1/monitor/safety", nil)
	req.Header.Set("Accept", "application/x-protobuf")
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("Content-Type") != "application/x-protobuf" {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}
	raw, _ := io.ReadAll(resp.Body)

	var st structpb.Struct
	if err := proto.Unmarshal(raw, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := st.Fields["maxWeight"].GetNumberValue(); got != 10000 {
		t.Errorf("maxWeight = %v", got)
	}
	if got := st.Fields["headline"].GetStringValue(); got != "✓ SAFE TO PROCEED" {
		t.Errorf("headline = %q", got)
	}
}

func TestScanBusyAndCommit(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, "POST", "/api/v1/monitor/scan", "")
	if status != fiber.StatusAccepted || out["zoneId"] != "zone1" {
		t.Fatalf("first scan: status = %d body = %v", status, out)
	}

	status, _ = f.do(t, "POST", "/api/v1/monitor/scan", "")
	if status != fiber.StatusConflict {
		t.Errorf("second scan status = %d, want 409", status)
	}

	_, out = f.do(t, "GET", "/api/v1/monitor/status", "")
	if out["analyzing"] != true {
		t.Errorf("analyzing = %v, want true while the call is held", out["analyzing"])
	}

	close(f.det.release)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.session.Safety().Snapshot().HumanCount == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scan result never committed")
}

func TestScanOfflineSource(t *testing.T) {
	f := newFixture(t)

	if status, _ := f.do(t, "POST", "/api/v1/monitor/zones/zone2/select", ""); status != fiber.StatusOK {
		t.Fatalf("select status = %d", status)
	}
	status, _ := f.do(t, "POST", "/api/v1/monitor/scan", "")
	if status != fiber.StatusServiceUnavailable {
		t.Errorf("scan on offline source status = %d, want 503", status)
	}
}

func TestDashboardPointsAtStream(t *testing.T) {
	f := newFixture(t)

	resp, err := f.app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `":9090/stream"`) {
		t.Error("dashboard does not reference the relay port")
	}
}
