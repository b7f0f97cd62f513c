package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnavailable is returned by a provider when a field it supports
	// cannot be resolved right now. The collector degrades it to the sentinel.
	ErrUnavailable = errors.New("field unavailable")
	// ErrPlatform is returned when the platform query layer itself cannot be
	// reached. It fails the whole collection.
	ErrPlatform = errors.New("platform query layer unavailable")
)

// Field names one platform attribute.
type Field string

const (
	FieldDeviceName    Field = "device.name"
	FieldDeviceModel   Field = "device.model"
	FieldSystemName    Field = "device.systemName"
	FieldSystemVersion Field = "device.systemVersion"
	FieldDeviceID      Field = "device.identifierForVendor"
	FieldAppVersion    Field = "device.appVersion"
	FieldBuildNumber   Field = "device.buildNumber"

	FieldConnected   Field = "network.isConnected"
	FieldInterfaces  Field = "network.interfaces" // []model.ConnectionType of active links
	FieldIPAddress   Field = "network.ipAddress"
	FieldSubnet      Field = "network.subnet"
	FieldGateway     Field = "network.gateway"
	FieldDNS         Field = "network.dns"
	FieldExpensive   Field = "network.isExpensive"
	FieldConstrained Field = "network.isConstrained"
	FieldSSID        Field = "wifi.ssid"
	FieldBSSID       Field = "wifi.bssid"
	FieldVPN         Field = "network.isVPN"
	FieldCarriers    Field = "cellular.carriers" // map[string]model.CarrierInfo

	FieldReachable  Field = "reachability.isReachable"
	FieldUserAction Field = "reachability.requiresUserAction"
)

// Provider is one independent source of platform facts.
type Provider interface {
	Name() string
	// Fields lists what this provider can answer on the current platform.
	Fields() []Field
	// Lookup returns the value of f, ErrUnavailable when it cannot be
	// resolved, or an error wrapping ErrPlatform when the facility is gone.
	Lookup(ctx context.Context, f Field) (any, error)
}

// Static answers from a fixed map. A value that is an error is returned as
// the lookup error.
type Static struct {
	ProviderName string
	Values       map[Field]any
}

func (s *Static) Name() string {
	if s.ProviderName == "" {
		return "static"
	}
	return s.ProviderName
}

func (s *Static) Fields() []Field {
	out := make([]Field, 0, len(s.Values))
	for f := range s.Values {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Static) Lookup(_ context.Context, f Field) (any, error) {
	v, ok := s.Values[f]
	if !ok {
		return nil, ErrUnavailable
	}
	if err, isErr := v.(error); isErr {
		return nil, err
	}
	return v, nil
}

// CollectionError reports a collection aborted by an unreachable platform facility.
type CollectionError struct {
	Provider string
	Field    Field
	Err      error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s via %s: %v", e.Field, e.Provider, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

func platformErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrPlatform, err)
}
