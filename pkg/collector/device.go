package collector

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/crypto/blake2b"

	"netreport/pkg/version"
)

// DeviceProvider reads host identity from the filesystem and build info.
type DeviceProvider struct {
	// Root prefixes every filesystem path; empty means "/".
	Root string
	// AppKey scopes the hashed device identifier to this application.
	AppKey   string
	Hostname func() (string, error)
}

// NewDeviceProvider returns a provider reading the live host.
func NewDeviceProvider(appKey string) *DeviceProvider {
	return &DeviceProvider{AppKey: appKey, Hostname: os.Hostname}
}

func (d *DeviceProvider) Name() string { return "device" }

func (d *DeviceProvider) Fields() []Field {
	return []Field{
		FieldDeviceName, FieldDeviceModel, FieldSystemName, FieldSystemVersion,
		FieldDeviceID, FieldAppVersion, FieldBuildNumber,
	}
}

func (d *DeviceProvider) Lookup(_ context.Context, f Field) (any, error) {
	switch f {
	case FieldDeviceName:
		hostname := d.Hostname
		if hostname == nil {
			hostname = os.Hostname
		}
		name, err := hostname()
		if err != nil || name == "" {
			return nil, ErrUnavailable
		}
		return name, nil
	case FieldDeviceModel:
		for _, p := range []string{"sys/devices/virtual/dmi/id/product_name", "proc/device-tree/model"} {
			if v := d.readTrim(p); v != "" {
				return v, nil
			}
		}
		return nil, ErrUnavailable
	case FieldSystemName:
		if v := d.osRelease()["NAME"]; v != "" {
			return v, nil
		}
		return systemName(runtime.GOOS), nil
	case FieldSystemVersion:
		rel := d.osRelease()
		if v := rel["VERSION_ID"]; v != "" {
			return v, nil
		}
		if v := d.readTrim("proc/sys/kernel/osrelease"); v != "" {
			return v, nil
		}
		return nil, ErrUnavailable
	case FieldDeviceID:
		for _, p := range []string{"etc/machine-id", "var/lib/dbus/machine-id"} {
			if id := d.readTrim(p); id != "" {
				return vendorIdentifier(id, d.AppKey)
			}
		}
		return nil, ErrUnavailable
	case FieldAppVersion:
		return nonEmpty(version.Build)
	case FieldBuildNumber:
		return nonEmpty(version.Commit)
	}
	return nil, ErrUnavailable
}

func (d *DeviceProvider) path(rel string) string {
	root := d.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, rel)
}

func (d *DeviceProvider) readTrim(rel string) string {
	b, err := os.ReadFile(d.path(rel))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(string(b), "\x00"))
}

func (d *DeviceProvider) osRelease() map[string]string {
	for _, p := range []string{"etc/os-release", "usr/lib/os-release"} {
		f, err := os.Open(d.path(p))
		if err != nil {
			continue
		}
		rel := parseOSRelease(f)
		_ = f.Close()
		return rel
	}
	return map[string]string{}
}

func parseOSRelease(r io.Reader) map[string]string {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[k] = strings.Trim(v, `"'`)
	}
	return out
}

// vendorIdentifier derives a stable, app-scoped UUID-shaped id from the machine id.
func vendorIdentifier(machineID, appKey string) (string, error) {
	h, err := blake2b.New(16, []byte(appKey))
	if err != nil {
		return "", ErrUnavailable
	}
	h.Write([]byte(machineID))
	s := strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32], nil
}

func systemName(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	case "android":
		return "Android"
	case "ios":
		return "iOS"
	default:
		return goos
	}
}

func nonEmpty(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrUnavailable
	}
	return s, nil
}
