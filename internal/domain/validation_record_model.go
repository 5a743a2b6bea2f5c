package domain

import "time"

type Status string

const (
	StatusAlive Status = "alive"
	StatusDead  Status = "dead"
	StatusError Status = "error"
)

// SourceExisting tags probes of proxies that came from the persisted pool.
const SourceExisting = "existing"

// ValidationRecord is one probe outcome. Records are append-only: the CSV log
// and the database sink only ever insert them.
type ValidationRecord struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time `gorm:"index;not null"`
	Proxy          string    `gorm:"size:21;index;not null"`
	ProxyType      ProxyType `gorm:"size:8;not null"`
	SourceURL      string    `gorm:"size:2048;index;not null"`
	Status         Status    `gorm:"size:8;index;not null"`
	ResponseTimeMs *int64
	TestURL        string `gorm:"size:2048;default:''"`

	RunID   string `gorm:"size:36;index;default:''"`
	Country string `gorm:"size:56;default:''"`
}

func (ValidationRecord) TableName() string {
	return "proxy_validation_records"
}

// SourceOrExisting returns the attribution written to the log.
func (r ValidationRecord) SourceOrExisting() string {
	if r.SourceURL == "" {
		return SourceExisting
	}
	return r.SourceURL
}
