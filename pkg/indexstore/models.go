package indexstore

import "time"

// Sample is one merged sample of a timing database.
type Sample struct {
	ID         uint   `gorm:"primaryKey"`
	Store      string `gorm:"not null;uniqueIndex:idx_samples_store_finish_rev"`
	FinishTime string `gorm:"not null;uniqueIndex:idx_samples_store_finish_rev"`
	Revision   string `gorm:"not null;uniqueIndex:idx_samples_store_finish_rev"`
	StartTime  string
	Branch     string `gorm:"index"`
	NTables    int

	// Row count per table serialized as JSON.
	EntriesJSON string `gorm:"type:text"`

	IndexedAt time.Time
}

// TimerValue is the value of one column of one region in one sample.
type TimerValue struct {
	ID         uint   `gorm:"primaryKey"`
	Store      string `gorm:"not null;index:idx_tv_lookup"`
	TableIndex int    `gorm:"not null;index:idx_tv_lookup"`
	Name       string `gorm:"not null;index:idx_tv_lookup"`
	ColumnName string `gorm:"not null;index:idx_tv_lookup"`
	Path       string
	FinishTime string `gorm:"not null;index"`
	Revision   string
	Value      float64
}
