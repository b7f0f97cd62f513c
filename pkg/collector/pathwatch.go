package collector

import (
	"log"
	"sync"
	"time"
)

// PathWatcher keeps HostNetwork's cached path current between collections
// and logs path changes. It is registered once per process and never touches
// snapshots; every collection still takes its own fresh reading first.
type PathWatcher struct {
	net      *HostNetwork
	interval time.Duration
	onChange func(Path)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewPathWatcher polls h every interval (5s when <= 0). onChange may be nil.
func NewPathWatcher(h *HostNetwork, interval time.Duration, onChange func(Path)) *PathWatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PathWatcher{
		net:      h,
		interval: interval,
		onChange: onChange,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start takes the initial reading and launches the poll loop. Later calls are no-ops.
func (w *PathWatcher) Start() {
	w.startOnce.Do(func() {
		last := ""
		if p, err := w.net.Refresh(); err == nil {
			last = p.Summary()
			w.net.setWatched(true)
		} else {
			log.Printf("path watcher: initial read failed: %v", err)
		}
		go w.loop(last)
	})
}

// Stop ends the poll loop; collections fall back to reading the path directly.
func (w *PathWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		// never started: mark done so Start stays a no-op
		w.startOnce.Do(func() { close(w.done) })
		<-w.done
		w.net.setWatched(false)
	})
}

func (w *PathWatcher) loop(last string) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}
		p, err := w.net.Refresh()
		if err != nil {
			// stale data must not be served as current
			w.net.setWatched(false)
			log.Printf("path watcher: refresh failed: %v", err)
			continue
		}
		w.net.setWatched(true)
		if s := p.Summary(); s != last {
			log.Printf("network path changed: %s", s)
			last = s
			if w.onChange != nil {
				w.onChange(p)
			}
		}
	}
}
