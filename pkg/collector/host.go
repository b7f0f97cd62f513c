package collector

// HostOptions configures the live host providers.
type HostOptions struct {
	AppKey           string
	ReachabilityHost string
	CaptiveURL       string
}

// NewHost assembles the provider set for the live host. The returned
// HostNetwork is what a PathWatcher should observe.
func NewHost(o HostOptions) (*HostNetwork, []Provider) {
	hn := NewHostNetwork()
	return hn, []Provider{
		NewDeviceProvider(o.AppKey),
		hn,
		&WiFiProvider{Net: hn},
		&WireGuardProvider{},
		&CarrierProvider{},
		NewReachabilityProber(o.ReachabilityHost, o.CaptiveURL),
	}
}
