// Package shell is the line-oriented front end of the agent: it renders the
// current snapshot and status and dispatches collect/send on user commands.
package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"netreport/pkg/model"
	"netreport/pkg/reporter"
)

// Collector produces snapshots.
type Collector interface {
	Collect(ctx context.Context) (model.Snapshot, error)
}

// Sender transmits snapshots.
type Sender interface {
	Send(ctx context.Context, snap *model.Snapshot, dest reporter.Destination) reporter.Status
}

const helpText = `commands:
  refresh, r   collect network info again
  send, s      send the current snapshot to the endpoint
  mock, m      send the current snapshot to the mock endpoint
  show         print the current snapshot
  status       print the report status
  help         print this help
  quit, q      exit`

// Shell owns the current snapshot. Commands run one at a time, so no
// action can start while another is outstanding.
type Shell struct {
	collector Collector
	sender    Sender
	tracker   *reporter.Tracker
	out       io.Writer
	current   *model.Snapshot
}

func New(c Collector, s Sender, tracker *reporter.Tracker, out io.Writer) *Shell {
	return &Shell{collector: c, sender: s, tracker: tracker, out: out}
}

// Snapshot returns the current snapshot, or nil before the first successful refresh.
func (s *Shell) Snapshot() *model.Snapshot {
	if s.current == nil {
		return nil
	}
	snap := s.current.Clone()
	return &snap
}

// Refresh replaces the current snapshot with a new one. On failure the
// previous snapshot is kept.
func (s *Shell) Refresh(ctx context.Context) error {
	cycle := s.tracker.Begin(reporter.Collecting, "collecting network info")
	snap, err := s.collector.Collect(ctx)
	if err != nil {
		s.tracker.Finish(cycle, reporter.Status{State: reporter.Failed, Message: "could not collect network info", Err: err})
		return err
	}
	s.current = &snap
	s.tracker.Finish(cycle, reporter.Status{State: reporter.Succeeded, Message: "network info updated"})
	return nil
}

// Send reports the current snapshot to dest.
func (s *Shell) Send(ctx context.Context, dest reporter.Destination) reporter.Status {
	return s.sender.Send(ctx, s.current, dest)
}

// Show prints the current snapshot as indented JSON.
func (s *Shell) Show() {
	if s.current == nil {
		fmt.Fprintln(s.out, "no network info collected yet")
		return
	}
	b, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		fmt.Fprintf(s.out, "render snapshot: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, string(b))
}

// Once collects, sends to dest and returns an error when either step fails.
func (s *Shell) Once(ctx context.Context, dest reporter.Destination) error {
	if err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	s.Show()
	st := s.Send(ctx, dest)
	fmt.Fprintln(s.out, RenderStatus(s.out, st))
	if st.State != reporter.Succeeded {
		if st.Err != nil {
			return st.Err
		}
		return errors.New(st.Message)
	}
	return nil
}

// Run collects once, then executes commands read from in until quit, EOF
// or ctx cancellation.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	fmt.Fprintln(s.out, helpText)
	if err := s.Refresh(ctx); err != nil {
		fmt.Fprintf(s.out, "could not collect network info: %v\n", err)
	} else {
		s.Show()
	}
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.dispatch(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, cmd string) bool {
	switch strings.ToLower(cmd) {
	case "":
	case "refresh", "r":
		if err := s.Refresh(ctx); err != nil {
			fmt.Fprintf(s.out, "could not collect network info: %v\n", err)
			return false
		}
		s.Show()
	case "send", "s":
		s.Send(ctx, reporter.Real)
	case "mock", "m":
		s.Send(ctx, reporter.Mock)
	case "show":
		s.Show()
	case "status":
		fmt.Fprintln(s.out, RenderStatus(s.out, s.tracker.Status()))
	case "help", "h", "?":
		fmt.Fprintln(s.out, helpText)
	case "quit", "q", "exit":
		return true
	default:
		fmt.Fprintf(s.out, "unknown command %q (try help)\n", cmd)
	}
	return false
}
