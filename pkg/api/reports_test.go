package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"netreport/pkg/model"
	"netreport/pkg/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.ReportStore, *ReportHub) {
	t.Helper()
	st := store.NewMemory()
	hub := NewReportHub()
	mux := http.NewServeMux()
	RegisterRoutes(mux, st, hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st, hub
}

func snapshotJSON(t *testing.T, ts string, conn model.ConnectionType) []byte {
	t.Helper()
	b, err := json.Marshal(model.Snapshot{
		Timestamp:   ts,
		DeviceInfo:  model.DeviceInfo{Name: "laptop", Model: "ThinkPad", SystemName: "Linux", SystemVersion: "6.8", IdentifierForVendor: "ABC-123"},
		NetworkInfo: model.NetworkInfo{IsConnected: true, ConnectionType: conn},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func post(t *testing.T, url, contentType string, body []byte) (int, string) {
	t.Helper()
	resp, err := http.Post(url+"/network-info", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestPostNetworkInfo(t *testing.T) {
	srv, st, _ := newTestServer(t)

	code, body := post(t, srv.URL, "application/json", snapshotJSON(t, "2024-05-01T10:00:00.000Z", model.ConnWiFi))
	if code != http.StatusOK || !strings.HasPrefix(body, "network info received (id=") {
		t.Fatalf("status=%d body=%q", code, body)
	}
	list, _ := st.ListReports(0)
	if len(list) != 1 {
		t.Fatalf("expected one stored report, got %d", len(list))
	}
	r := list[0]
	if r.DeviceID != "ABC-123" || r.Unchanged || r.Fingerprint == "" || r.RemoteAddr == "" {
		t.Fatalf("unexpected report %+v", r)
	}
	if !strings.Contains(body, r.ID) {
		t.Fatalf("reply does not carry the report id: %q", body)
	}

	// same network later: unchanged
	post(t, srv.URL, "application/json; charset=utf-8", snapshotJSON(t, "2024-05-01T10:01:00.000Z", model.ConnWiFi))
	// different network: changed again
	post(t, srv.URL, "application/json", snapshotJSON(t, "2024-05-01T10:02:00.000Z", model.ConnEthernet))

	list, _ = st.ListReports(0)
	if len(list) != 3 {
		t.Fatalf("expected three reports, got %d", len(list))
	}
	if list[0].Unchanged || !list[1].Unchanged {
		t.Fatalf("unchanged flags: newest=%v middle=%v", list[0].Unchanged, list[1].Unchanged)
	}
}

func TestPostNetworkInfoRejects(t *testing.T) {
	srv, st, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/network-info")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status=%d", resp.StatusCode)
	}

	cases := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"wrong content type", "text/plain", `{}`, http.StatusUnsupportedMediaType},
		{"malformed", "application/json", `{"timestamp":`, http.StatusBadRequest},
		{"no timestamp", "application/json", `{"deviceInfo":{"name":"x"}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if code, _ := post(t, srv.URL, tc.contentType, []byte(tc.body)); code != tc.want {
			t.Fatalf("%s: status=%d want %d", tc.name, code, tc.want)
		}
	}
	if list, _ := st.ListReports(0); len(list) != 0 {
		t.Fatalf("rejected payloads were stored: %d", len(list))
	}
}

func TestConcurrentPostsFromOneDevice(t *testing.T) {
	srv, st, _ := newTestServer(t)

	const n = 20
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		body := snapshotJSON(t, fmt.Sprintf("2024-05-01T10:00:%02d.000Z", i), model.ConnWiFi)
		wg.Add(1)
		go func(i int, body []byte) {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/network-info", "application/json", bytes.NewReader(body))
			if err != nil {
				return
			}
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i, body)
	}
	wg.Wait()
	for i, code := range codes {
		if code != http.StatusOK {
			t.Fatalf("post %d: status=%d", i, code)
		}
	}

	list, _ := st.ListReports(0)
	if len(list) != n {
		t.Fatalf("expected %d reports, got %d", n, len(list))
	}
	changed := 0
	for _, r := range list {
		if !r.Unchanged {
			changed++
		}
	}
	if changed != 1 {
		t.Fatalf("identical snapshots from one device: %d reports marked changed, want 1", changed)
	}
}

func TestDeviceLocksReleased(t *testing.T) {
	locks := newDeviceLocks()
	unlockA := locks.lock("a")
	unlockB := locks.lock("b")

	acquired := make(chan struct{})
	go func() {
		unlock := locks.lock("a")
		unlock()
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("second holder of device a did not wait")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("device a never released")
	}
	unlockB()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.held) != 0 {
		t.Fatalf("locks left behind: %v", locks.held)
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestReportQueries(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var empty []model.Report
	if code := getJSON(t, srv.URL+"/api/v1/reports", &empty); code != http.StatusOK || len(empty) != 0 {
		t.Fatalf("empty list: status=%d len=%d", code, len(empty))
	}
	if code := getJSON(t, srv.URL+"/api/v1/reports/latest", nil); code != http.StatusNotFound {
		t.Fatalf("latest on empty store: %d", code)
	}

	post(t, srv.URL, "application/json", snapshotJSON(t, "2024-05-01T10:00:00.000Z", model.ConnWiFi))
	post(t, srv.URL, "application/json", snapshotJSON(t, "2024-05-01T10:01:00.000Z", model.ConnCellular))

	var list []model.Report
	if code := getJSON(t, srv.URL+"/api/v1/reports?limit=1", &list); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("limited list: status=%d len=%d", code, len(list))
	}
	if list[0].Snapshot.NetworkInfo.ConnectionType != model.ConnCellular {
		t.Fatalf("expected newest first, got %s", list[0].Snapshot.NetworkInfo.ConnectionType)
	}
	if code := getJSON(t, srv.URL+"/api/v1/reports?limit=abc", nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", code)
	}

	var one model.Report
	if code := getJSON(t, srv.URL+"/api/v1/reports/"+list[0].ID, &one); code != http.StatusOK || one.ID != list[0].ID {
		t.Fatalf("get by id: status=%d id=%s", code, one.ID)
	}
	if code := getJSON(t, srv.URL+"/api/v1/reports/nope", nil); code != http.StatusNotFound {
		t.Fatalf("unknown id: %d", code)
	}

	var latest model.Report
	if code := getJSON(t, srv.URL+"/api/v1/reports/latest?deviceId=ABC-123", &latest); code != http.StatusOK || latest.ID != list[0].ID {
		t.Fatalf("latest for device: status=%d id=%s", code, latest.ID)
	}
	if code := getJSON(t, srv.URL+"/api/v1/reports/latest?deviceId=other", nil); code != http.StatusNotFound {
		t.Fatalf("latest for unknown device: %d", code)
	}
}

func TestDeviceKey(t *testing.T) {
	s := model.Snapshot{DeviceInfo: model.DeviceInfo{Name: "laptop", IdentifierForVendor: model.Unknown}}
	if got := DeviceKey(s); got != "name:laptop" {
		t.Fatalf("got %q", got)
	}
	s.DeviceInfo.IdentifierForVendor = "ABC"
	if got := DeviceKey(s); got != "ABC" {
		t.Fatalf("got %q", got)
	}
	if got := DeviceKey(model.Snapshot{}); got != model.Unknown {
		t.Fatalf("got %q", got)
	}
}

func TestReportFeed(t *testing.T) {
	srv, _, hub := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/reports"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("subscriber not registered")
	}

	post(t, srv.URL, "application/json", snapshotJSON(t, "2024-05-01T10:00:00.000Z", model.ConnWiFi))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string       `json:"type"`
		Payload model.Report `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "report" || msg.Payload.DeviceID != "ABC-123" {
		t.Fatalf("unexpected message %+v", msg)
	}

	_ = conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("closed subscriber not removed")
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}
