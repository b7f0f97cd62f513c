package collector

import (
	"netreport/pkg/model"
	"netreport/pkg/version"
)

// Fake returns a provider describing a fixed WiFi-connected laptop. It lets
// the agent run end to end on hosts without the usual tools installed.
func Fake() Provider {
	return &Static{
		ProviderName: "fake",
		Values: map[Field]any{
			FieldDeviceName:    "demo-laptop",
			FieldDeviceModel:   "Simulated Host",
			FieldSystemName:    "Linux",
			FieldSystemVersion: "6.8",
			FieldDeviceID:      "6F9619FF-8B86-D011-B42D-00C04FC964FF",
			FieldAppVersion:    version.Build,
			FieldBuildNumber:   "1",
			FieldConnected:     true,
			FieldInterfaces:    []model.ConnectionType{model.ConnWiFi, model.ConnEthernet},
			FieldIPAddress:     "192.168.1.23",
			FieldSubnet:        "255.255.255.0",
			FieldGateway:       "192.168.1.1",
			FieldDNS:           []string{"192.168.1.1", "1.1.1.1"},
			FieldExpensive:     false,
			FieldSSID:          "HomeNetwork",
			FieldBSSID:         "a4:2b:b0:12:34:56",
			FieldVPN:           false,
			FieldReachable:     true,
			FieldUserAction:    false,
		},
	}
}
