package model

import "time"

// Well-known metadata keys.
const (
	MetaHasPendingChanges = "hasPendingChanges"
	MetaLastSyncTime      = "lastSyncTime"
)

// MetaEntry is a scalar value stored under a name.
type MetaEntry struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
