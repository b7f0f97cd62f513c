package store

import (
	"errors"

	"netreport/pkg/model"
)

// ErrNotFound is returned when a requested report does not exist.
var ErrNotFound = errors.New("report not found")

// ReportStore persists reports accepted by the controller.
// The memory implementation is the default; sqlite, mysql and consul back it
// for deployments that need reports to outlive the process.
type ReportStore interface {
	SaveReport(model.Report) error
	// ListReports returns up to limit reports, newest first. limit <= 0 means all.
	ListReports(limit int) ([]model.Report, error)
	GetReport(id string) (model.Report, error)
	// LatestForDevice returns the most recent report of a device.
	LatestForDevice(deviceID string) (model.Report, bool, error)
	Close() error
}

// NewMemory is a helper to construct the in-memory implementation without importing it directly.
func NewMemory() ReportStore {
	return NewMemoryStore(0)
}
