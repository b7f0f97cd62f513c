package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"netreport/pkg/model"
	"netreport/pkg/reporter"
)

type fakeCollector struct {
	snaps []model.Snapshot
	errs  []error
	calls int
}

func (f *fakeCollector) Collect(context.Context) (model.Snapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return model.Snapshot{}, f.errs[i]
	}
	if i < len(f.snaps) {
		return f.snaps[i], nil
	}
	return f.snaps[len(f.snaps)-1], nil
}

type sendCall struct {
	snap *model.Snapshot
	dest reporter.Destination
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sendCall
	st   reporter.Status
}

func (f *fakeSender) Send(_ context.Context, snap *model.Snapshot, dest reporter.Destination) reporter.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sendCall{snap: snap, dest: dest})
	return f.st
}

func snapAt(ts string, conn model.ConnectionType) model.Snapshot {
	return model.Snapshot{Timestamp: ts, NetworkInfo: model.NetworkInfo{IsConnected: true, ConnectionType: conn}}
}

func TestRefreshKeepsPreviousSnapshotOnFailure(t *testing.T) {
	c := &fakeCollector{
		snaps: []model.Snapshot{snapAt("2024-05-01T10:00:00.000Z", model.ConnWiFi)},
		errs:  []error{nil, errors.New("platform query layer unavailable")},
	}
	tr := reporter.NewTracker(time.Hour, nil)
	defer tr.Stop()
	sh := New(c, &fakeSender{}, tr, &bytes.Buffer{})

	if sh.Snapshot() != nil {
		t.Fatalf("snapshot before first refresh")
	}
	if err := sh.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := sh.Refresh(context.Background()); err == nil {
		t.Fatalf("expected failure")
	}
	got := sh.Snapshot()
	if got == nil || got.Timestamp != "2024-05-01T10:00:00.000Z" {
		t.Fatalf("previous snapshot lost: %+v", got)
	}
	if st := tr.Status(); st.State != reporter.Failed {
		t.Fatalf("status=%v", st)
	}
}

func TestRunDispatchesCommands(t *testing.T) {
	c := &fakeCollector{snaps: []model.Snapshot{
		snapAt("2024-05-01T10:00:00.000Z", model.ConnWiFi),
		snapAt("2024-05-01T10:00:05.000Z", model.ConnEthernet),
	}}
	s := &fakeSender{st: reporter.Status{State: reporter.Succeeded, Message: "ok"}}
	tr := reporter.NewTracker(time.Hour, nil)
	defer tr.Stop()
	var out bytes.Buffer
	sh := New(c, s, tr, &out)

	in := strings.NewReader("send\nmock\nrefresh\nstatus\nbogus\ns\nquit\nsend\n")
	if err := sh.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}

	if c.calls != 2 {
		t.Fatalf("collect calls=%d", c.calls)
	}
	if len(s.sent) != 3 {
		t.Fatalf("sends=%d (commands after quit must not run)", len(s.sent))
	}
	if s.sent[0].dest != reporter.Real || s.sent[1].dest != reporter.Mock || s.sent[2].dest != reporter.Real {
		t.Fatalf("unexpected destinations %+v", s.sent)
	}
	if s.sent[0].snap.NetworkInfo.ConnectionType != model.ConnWiFi || s.sent[2].snap.NetworkInfo.ConnectionType != model.ConnEthernet {
		t.Fatalf("sends did not use the current snapshot")
	}
	text := out.String()
	for _, want := range []string{"commands:", `"connectionType": "WiFi"`, "Succeeded: network info updated", `unknown command "bogus"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &fakeCollector{snaps: []model.Snapshot{snapAt("2024-05-01T10:00:00.000Z", model.ConnWiFi)}}
	tr := reporter.NewTracker(time.Hour, nil)
	defer tr.Stop()
	sh := New(c, &fakeSender{}, tr, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	blocked, w := newBlockingReader()
	defer w()
	go func() { done <- sh.Run(ctx, blocked) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}

// newBlockingReader returns a reader that blocks until the release func is called.
func newBlockingReader() (*blockingReader, func()) {
	r := &blockingReader{release: make(chan struct{})}
	return r, func() { close(r.release) }
}

type blockingReader struct{ release chan struct{} }

func (b *blockingReader) Read([]byte) (int, error) {
	<-b.release
	return 0, errors.New("closed")
}

func TestOnce(t *testing.T) {
	c := &fakeCollector{snaps: []model.Snapshot{snapAt("2024-05-01T10:00:00.000Z", model.ConnWiFi)}}
	tr := reporter.NewTracker(time.Hour, nil)
	defer tr.Stop()

	ok := &fakeSender{st: reporter.Status{State: reporter.Succeeded, Message: "stored"}}
	var out bytes.Buffer
	if err := New(c, ok, tr, &out).Once(context.Background(), reporter.Mock); err != nil {
		t.Fatalf("once: %v", err)
	}
	if !strings.Contains(out.String(), "Succeeded: stored") {
		t.Fatalf("output:\n%s", out.String())
	}

	failed := &fakeSender{st: reporter.Status{State: reporter.Failed, Message: "500"}}
	if err := New(c, failed, tr, &bytes.Buffer{}).Once(context.Background(), reporter.Real); err == nil || err.Error() != "500" {
		t.Fatalf("expected 500 error, got %v", err)
	}
}
