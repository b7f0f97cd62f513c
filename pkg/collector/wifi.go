package collector

import (
	"bufio"
	"context"
	"os/exec"
	"strings"

	"netreport/pkg/model"
)

// Runner executes a platform tool and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs tools through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// WiFiProvider reads SSID and BSSID of the active wireless link via `iw`.
type WiFiProvider struct {
	Net *HostNetwork
	Run Runner
}

func (w *WiFiProvider) Name() string { return "wifi" }

func (w *WiFiProvider) Fields() []Field { return []Field{FieldSSID, FieldBSSID} }

func (w *WiFiProvider) Lookup(ctx context.Context, f Field) (any, error) {
	p, err := w.Net.Current()
	if err != nil {
		return nil, err
	}
	iface := ""
	for _, l := range p.Links {
		if l.Type == model.ConnWiFi {
			iface = l.Name
			break
		}
	}
	if iface == "" {
		return nil, ErrUnavailable
	}
	run := w.Run
	if run == nil {
		run = ExecRunner
	}
	out, err := run(ctx, "iw", "dev", iface, "link")
	if err != nil {
		return nil, ErrUnavailable
	}
	ssid, bssid := parseIWLink(string(out))
	switch f {
	case FieldSSID:
		return nonEmpty(ssid)
	case FieldBSSID:
		return nonEmpty(bssid)
	}
	return nil, ErrUnavailable
}

// parseIWLink extracts SSID and BSSID from `iw dev <if> link` output.
func parseIWLink(out string) (ssid, bssid string) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Connected to "):
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				bssid = fields[2]
			}
		case strings.HasPrefix(line, "SSID:"):
			ssid = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		}
	}
	return ssid, bssid
}
