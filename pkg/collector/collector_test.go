package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"netreport/pkg/model"
)

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC)
}

func TestCollectDegradesUnavailableFields(t *testing.T) {
	p := &Static{Values: map[Field]any{
		FieldDeviceName: "host-1",
		FieldDeviceID:   ErrUnavailable,
		FieldConnected:  true,
		FieldInterfaces: []model.ConnectionType{model.ConnEthernet},
		FieldSSID:       ErrUnavailable,
		FieldBSSID:      errors.New("iw crashed"),
		FieldExpensive:  ErrUnavailable,
		FieldReachable:  true,
	}}
	c := New(Options{Now: fixedNow}, p)

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if snap.Timestamp != "2024-05-01T10:00:00.123Z" {
		t.Fatalf("unexpected timestamp %q", snap.Timestamp)
	}
	if snap.DeviceInfo.Name != "host-1" {
		t.Fatalf("name=%q", snap.DeviceInfo.Name)
	}
	// required fields never come back empty
	if snap.DeviceInfo.Model != model.Unknown || snap.DeviceInfo.IdentifierForVendor != model.Unknown {
		t.Fatalf("expected Unknown for missing device fields: %+v", snap.DeviceInfo)
	}
	ni := snap.NetworkInfo
	if !ni.IsConnected || ni.ConnectionType != model.ConnEthernet {
		t.Fatalf("unexpected network info %+v", ni)
	}
	if ni.SSID != model.Unknown || ni.BSSID != model.Unknown {
		t.Fatalf("declared but unavailable fields should be Unknown: ssid=%q bssid=%q", ni.SSID, ni.BSSID)
	}
	if ni.Gateway != "" || ni.DNS != "" {
		t.Fatalf("undeclared optional fields should be omitted: gw=%q dns=%q", ni.Gateway, ni.DNS)
	}
	if ni.IsExpensive == nil || *ni.IsExpensive {
		t.Fatalf("declared flag should degrade to false, got %v", ni.IsExpensive)
	}
	if ni.IsConstrained != nil {
		t.Fatalf("undeclared flag should be nil")
	}
	if snap.CellularInfo != nil {
		t.Fatalf("no carrier provider, expected nil cellular info")
	}
	if snap.Reachability == nil || !snap.Reachability.IsReachable || snap.Reachability.RequiresConnection {
		t.Fatalf("unexpected reachability %+v", snap.Reachability)
	}
}

func TestCollectConnectionPrecedence(t *testing.T) {
	cases := []struct {
		active []model.ConnectionType
		want   model.ConnectionType
	}{
		{[]model.ConnectionType{model.ConnEthernet, model.ConnWiFi}, model.ConnWiFi},
		{[]model.ConnectionType{model.ConnWiFi, model.ConnCellular}, model.ConnWiFi},
		{[]model.ConnectionType{model.ConnCellular, model.ConnWiFi}, model.ConnWiFi},
		{[]model.ConnectionType{model.ConnCellular, model.ConnEthernet}, model.ConnCellular},
		{[]model.ConnectionType{model.ConnLoopback, model.ConnEthernet}, model.ConnEthernet},
		{[]model.ConnectionType{model.ConnLoopback}, model.ConnLoopback},
		{nil, model.ConnUnknown},
	}
	for _, tc := range cases {
		c := New(Options{}, &Static{Values: map[Field]any{FieldInterfaces: tc.active}})
		snap, err := c.Collect(context.Background())
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		if snap.NetworkInfo.ConnectionType != tc.want {
			t.Fatalf("active=%v got %s want %s", tc.active, snap.NetworkInfo.ConnectionType, tc.want)
		}
	}
}

func TestCollectTwiceDiffersOnlyInTimestamp(t *testing.T) {
	now := fixedNow()
	c := New(Options{Now: func() time.Time { now = now.Add(time.Second); return now }}, Fake())

	a, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("first collect: %v", err)
	}
	b, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("second collect: %v", err)
	}
	if a.Timestamp == b.Timestamp {
		t.Fatalf("expected distinct timestamps")
	}
	if model.Fingerprint(a) != model.Fingerprint(b) {
		t.Fatalf("snapshots differ beyond the timestamp:\n%+v\n%+v", a, b)
	}
}

func TestCollectPlatformFailure(t *testing.T) {
	p := &Static{Values: map[Field]any{
		FieldDeviceName: "host-1",
		FieldIPAddress:  fmt.Errorf("netlink socket: %w", ErrPlatform),
	}}
	snap, err := New(Options{}, p).Collect(context.Background())
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !errors.Is(err, ErrPlatform) {
		t.Fatalf("expected ErrPlatform, got %v", err)
	}
	var ce *CollectionError
	if !errors.As(err, &ce) || ce.Field != FieldIPAddress {
		t.Fatalf("expected CollectionError for ip address, got %v", err)
	}
	if !(&snap).IsZero() {
		t.Fatalf("failed collection must not return a partial snapshot")
	}
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}, Fake()).Collect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type blockingProvider struct{}

func (blockingProvider) Name() string    { return "blocking" }
func (blockingProvider) Fields() []Field { return []Field{FieldGateway} }
func (blockingProvider) Lookup(ctx context.Context, _ Field) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCollectQueryTimeoutDegrades(t *testing.T) {
	c := New(Options{QueryTimeout: 20 * time.Millisecond}, blockingProvider{})
	start := time.Now()
	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if snap.NetworkInfo.Gateway != model.Unknown {
		t.Fatalf("gateway=%q", snap.NetworkInfo.Gateway)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not applied")
	}
}

func TestFirstProviderWins(t *testing.T) {
	a := &Static{ProviderName: "a", Values: map[Field]any{FieldDeviceName: "from-a"}}
	b := &Static{ProviderName: "b", Values: map[Field]any{FieldDeviceName: "from-b", FieldDeviceModel: "model-b"}}
	snap, err := New(Options{}, a, b).Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if snap.DeviceInfo.Name != "from-a" || snap.DeviceInfo.Model != "model-b" {
		t.Fatalf("unexpected device info %+v", snap.DeviceInfo)
	}
}

func TestReachabilityDerivation(t *testing.T) {
	p := &Static{Values: map[Field]any{
		FieldConnected:  true,
		FieldInterfaces: []model.ConnectionType{model.ConnCellular},
		FieldReachable:  true,
		FieldUserAction: true,
	}}
	snap, err := New(Options{}, p).Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	r := snap.Reachability
	if r == nil || !r.IsReachableViaCellular || r.IsReachableViaWiFi || !r.RequiresUserAction {
		t.Fatalf("unexpected reachability %+v", r)
	}
}

func TestCarriersNormalized(t *testing.T) {
	p := &Static{Values: map[Field]any{
		FieldCarriers: map[string]model.CarrierInfo{"modem0": {CarrierName: "Example", MobileCountryCode: "310"}},
	}}
	snap, err := New(Options{}, p).Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	ci := snap.CellularInfo["modem0"]
	if ci.CarrierName != "Example" || ci.MobileNetworkCode != model.Unknown || ci.ISOCountryCode != model.Unknown {
		t.Fatalf("unexpected carrier %+v", ci)
	}
}
