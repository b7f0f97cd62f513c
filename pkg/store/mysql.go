package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"netreport/pkg/model"
)

// ReportRow is the gorm model behind GormStore.
type ReportRow struct {
	ID          string    `gorm:"primaryKey;size:64"`
	DeviceID    string    `gorm:"size:128;index:idx_device_received,priority:1"`
	ReceivedAt  time.Time `gorm:"index:idx_device_received,priority:2;index"`
	RemoteAddr  string    `gorm:"size:128"`
	Fingerprint string    `gorm:"size:64"`
	Unchanged   bool
	Snapshot    string `gorm:"type:text"`
}

func (ReportRow) TableName() string { return "reports" }

// GormStore keeps reports in any gorm-supported SQL database (MySQL in production).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the reports table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ReportRow{}); err != nil {
		return nil, fmt.Errorf("migrate reports: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) SaveReport(r model.Report) error {
	row, err := toRow(r)
	if err != nil {
		return err
	}
	return g.db.Create(&row).Error
}

func (g *GormStore) ListReports(limit int) ([]model.Report, error) {
	q := g.db.Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []ReportRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Report, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (g *GormStore) GetReport(id string) (model.Report, error) {
	var row ReportRow
	if err := g.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Report{}, ErrNotFound
		}
		return model.Report{}, err
	}
	return fromRow(row)
}

func (g *GormStore) LatestForDevice(deviceID string) (model.Report, bool, error) {
	var row ReportRow
	err := g.db.Where("device_id = ?", deviceID).Order("received_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Report{}, false, nil
	}
	if err != nil {
		return model.Report{}, false, err
	}
	r, err := fromRow(row)
	return r, err == nil, err
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(r model.Report) (ReportRow, error) {
	b, err := json.Marshal(r.Snapshot)
	if err != nil {
		return ReportRow{}, err
	}
	return ReportRow{
		ID:          r.ID,
		DeviceID:    r.DeviceID,
		ReceivedAt:  r.ReceivedAt,
		RemoteAddr:  r.RemoteAddr,
		Fingerprint: r.Fingerprint,
		Unchanged:   r.Unchanged,
		Snapshot:    string(b),
	}, nil
}

func fromRow(row ReportRow) (model.Report, error) {
	r := model.Report{
		ID:          row.ID,
		DeviceID:    row.DeviceID,
		ReceivedAt:  row.ReceivedAt,
		RemoteAddr:  row.RemoteAddr,
		Fingerprint: row.Fingerprint,
		Unchanged:   row.Unchanged,
	}
	if err := json.Unmarshal([]byte(row.Snapshot), &r.Snapshot); err != nil {
		return model.Report{}, fmt.Errorf("decode snapshot %s: %w", row.ID, err)
	}
	return r, nil
}
