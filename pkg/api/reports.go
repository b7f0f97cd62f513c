package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"netreport/pkg/model"
	"netreport/pkg/store"
)

const maxSnapshotBytes = 1 << 20

// RegisterRoutes wires the HTTP handlers on the provided mux. hub may be nil.
func RegisterRoutes(mux *http.ServeMux, st store.ReportStore, hub *ReportHub) {
	locks := newDeviceLocks()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("netreport controller"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/network-info", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct != "application/json" {
			http.Error(w, "content type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
		var snap model.Snapshot
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSnapshotBytes)).Decode(&snap); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if snap.IsZero() {
			http.Error(w, "timestamp is required", http.StatusBadRequest)
			return
		}
		report, err := accept(st, locks, snap, r.RemoteAddr)
		if err != nil {
			log.Printf("save report failed: %v", err)
			http.Error(w, "failed to save report", http.StatusInternalServerError)
			return
		}
		if hub != nil {
			hub.Broadcast(report)
		}
		log.Printf("report accepted id=%s device=%s type=%s connected=%v unchanged=%v",
			report.ID, report.DeviceID, snap.NetworkInfo.ConnectionType, snap.NetworkInfo.IsConnected, report.Unchanged)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "network info received (id=%s)", report.ID)
	})

	mux.HandleFunc("/api/v1/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		reports, err := st.ListReports(limit)
		if err != nil {
			http.Error(w, "failed to list reports", http.StatusInternalServerError)
			return
		}
		if reports == nil {
			reports = []model.Report{}
		}
		writeJSON(w, http.StatusOK, reports)
	})

	mux.HandleFunc("/api/v1/reports/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
		if id == "latest" {
			serveLatest(w, r, st)
			return
		}
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		report, err := st.GetReport(id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "report not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "failed to load report", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	if hub != nil {
		mux.HandleFunc("/api/v1/ws/reports", hub.HandleSubscribe)
	}
}

// serveLatest answers the newest report overall, or of ?deviceId=.
func serveLatest(w http.ResponseWriter, r *http.Request, st store.ReportStore) {
	var (
		report model.Report
		found  bool
		err    error
	)
	if deviceID := r.URL.Query().Get("deviceId"); deviceID != "" {
		report, found, err = st.LatestForDevice(deviceID)
	} else {
		var list []model.Report
		list, err = st.ListReports(1)
		if len(list) > 0 {
			report, found = list[0], true
		}
	}
	if err != nil {
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "no reports yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// accept wraps snap in a Report, compares it with the device's previous
// report and persists it. Reports of one device are accepted one at a time
// so each is compared against the report saved just before it.
func accept(st store.ReportStore, locks *deviceLocks, snap model.Snapshot, remote string) (model.Report, error) {
	deviceID := DeviceKey(snap)
	fp := model.Fingerprint(snap)
	unlock := locks.lock(deviceID)
	defer unlock()
	report := model.Report{
		ID:          uuid.NewString(),
		DeviceID:    deviceID,
		ReceivedAt:  time.Now().UTC(),
		RemoteAddr:  remote,
		Fingerprint: fp,
		Snapshot:    snap,
	}
	if prev, ok, err := st.LatestForDevice(deviceID); err == nil && ok {
		report.Unchanged = prev.Fingerprint == fp
	}
	if err := st.SaveReport(report); err != nil {
		return model.Report{}, err
	}
	return report, nil
}

// deviceLocks hands out one mutex per device id. Entries are dropped once no
// request holds or waits for them.
type deviceLocks struct {
	mu   sync.Mutex
	held map[string]*deviceLock
}

type deviceLock struct {
	sync.Mutex
	refs int
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{held: make(map[string]*deviceLock)}
}

func (d *deviceLocks) lock(id string) (unlock func()) {
	d.mu.Lock()
	l, ok := d.held[id]
	if !ok {
		l = &deviceLock{}
		d.held[id] = l
	}
	l.refs++
	d.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.held, id)
		}
		d.mu.Unlock()
	}
}

// DeviceKey identifies the reporting device, preferring the vendor identifier.
func DeviceKey(snap model.Snapshot) string {
	if id := snap.DeviceInfo.IdentifierForVendor; id != "" && id != model.Unknown {
		return id
	}
	if name := snap.DeviceInfo.Name; name != "" && name != model.Unknown {
		return "name:" + name
	}
	return model.Unknown
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
