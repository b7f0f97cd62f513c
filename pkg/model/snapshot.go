package model

import "time"

// Unknown marks a field that was queried but could not be resolved.
const Unknown = "Unknown"

// TimestampLayout is the ISO-8601 layout used for Snapshot.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ConnectionType is the classified type of the interface carrying the current path.
type ConnectionType string

const (
	ConnWiFi     ConnectionType = "WiFi"
	ConnCellular ConnectionType = "Cellular"
	ConnEthernet ConnectionType = "Ethernet"
	ConnLoopback ConnectionType = "Loopback"
	ConnUnknown  ConnectionType = "Unknown"
)

// ConnectionPrecedence lists connection types from highest to lowest precedence.
var ConnectionPrecedence = []ConnectionType{ConnWiFi, ConnCellular, ConnEthernet, ConnLoopback}

// Snapshot is one point-in-time collection of device and network attributes.
// Field names are part of the wire contract with the receiving backend.
type Snapshot struct {
	Timestamp    string                 `json:"timestamp"`
	DeviceInfo   DeviceInfo             `json:"deviceInfo"`
	NetworkInfo  NetworkInfo            `json:"networkInfo"`
	Reachability *Reachability          `json:"reachability,omitempty"`
	CellularInfo map[string]CarrierInfo `json:"cellularInfo,omitempty"`
}

// DeviceInfo identifies the device and the reporting build.
type DeviceInfo struct {
	Name                string `json:"name"`
	Model               string `json:"model"`
	SystemName          string `json:"systemName"`
	SystemVersion       string `json:"systemVersion"`
	IdentifierForVendor string `json:"identifierForVendor"`
	AppVersion          string `json:"appVersion,omitempty"`
	BuildNumber         string `json:"buildNumber,omitempty"`
}

// NetworkInfo describes the current network path. Optional fields are empty
// (and omitted) when no provider on this platform supports them.
type NetworkInfo struct {
	IsConnected         bool             `json:"isConnected"`
	ConnectionType      ConnectionType   `json:"connectionType"`
	SSID                string           `json:"ssid,omitempty"`
	BSSID               string           `json:"bssid,omitempty"`
	IPAddress           string           `json:"ipAddress,omitempty"`
	Subnet              string           `json:"subnet,omitempty"`
	Gateway             string           `json:"gateway,omitempty"`
	DNS                 string           `json:"dns,omitempty"`
	IsExpensive         *bool            `json:"isExpensive,omitempty"`
	IsConstrained       *bool            `json:"isConstrained,omitempty"`
	IsVPN               *bool            `json:"isVPN,omitempty"`
	AvailableInterfaces []ConnectionType `json:"availableInterfaces,omitempty"`
}

// Reachability is the derived assessment of a fixed remote host.
type Reachability struct {
	IsReachable            bool `json:"isReachable"`
	IsReachableViaWiFi     bool `json:"isReachableViaWiFi"`
	IsReachableViaCellular bool `json:"isReachableViaCellular"`
	RequiresConnection     bool `json:"requiresConnection"`
	RequiresUserAction     bool `json:"requiresUserAction"`
}

// CarrierInfo describes one cellular subscription.
type CarrierInfo struct {
	CarrierName       string `json:"carrierName"`
	ISOCountryCode    string `json:"isoCountryCode"`
	MobileCountryCode string `json:"mobileCountryCode"`
	MobileNetworkCode string `json:"mobileNetworkCode"`
	AllowsVOIP        bool   `json:"allowsVOIP"`
}

// IsZero reports whether s carries nothing worth sending.
func (s *Snapshot) IsZero() bool {
	return s == nil || s.Timestamp == ""
}

// Time parses the snapshot timestamp.
func (s Snapshot) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, s.Timestamp)
}

// Clone returns a deep copy so callers never share slices, maps or pointers.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.NetworkInfo.IsExpensive = cloneBool(s.NetworkInfo.IsExpensive)
	out.NetworkInfo.IsConstrained = cloneBool(s.NetworkInfo.IsConstrained)
	out.NetworkInfo.IsVPN = cloneBool(s.NetworkInfo.IsVPN)
	if s.NetworkInfo.AvailableInterfaces != nil {
		out.NetworkInfo.AvailableInterfaces = append([]ConnectionType(nil), s.NetworkInfo.AvailableInterfaces...)
	}
	if s.Reachability != nil {
		r := *s.Reachability
		out.Reachability = &r
	}
	if s.CellularInfo != nil {
		out.CellularInfo = make(map[string]CarrierInfo, len(s.CellularInfo))
		for k, v := range s.CellularInfo {
			out.CellularInfo[k] = v
		}
	}
	return out
}

// WithoutTimestamp returns a copy with the timestamp cleared, for comparisons.
func (s Snapshot) WithoutTimestamp() Snapshot {
	out := s.Clone()
	out.Timestamp = ""
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
