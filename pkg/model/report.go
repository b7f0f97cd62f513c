package model

import "time"

// Report is a snapshot accepted by the controller.
type Report struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"deviceId"`
	ReceivedAt  time.Time `json:"receivedAt"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Unchanged   bool      `json:"unchanged"` // same fingerprint as the device's previous report
	Snapshot    Snapshot  `json:"snapshot"`
}
