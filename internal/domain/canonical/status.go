package canonical

import (
	"database/sql/driver"
	"strings"
)

// Status is the provider-independent payment status vocabulary.
type Status string

const (
	StatusCreated     Status = "CREATED"
	StatusPending     Status = "PENDING"
	StatusPaid        Status = "PAID"
	StatusRejected    Status = "REJECTED"
	StatusCanceled    Status = "CANCELED"
	StatusRefunded    Status = "REFUNDED"
	StatusChargedBack Status = "CHARGED_BACK"
	StatusExpired     Status = "EXPIRED"

	// StatusUpdated is the technical fallback for provider statuses
	// without a mapping.
	StatusUpdated Status = "UPDATED"
)

// Known reports whether the status belongs to the closed vocabulary.
func (s Status) Known() bool {
	switch s {
	case StatusCreated, StatusPending, StatusPaid, StatusRejected,
		StatusCanceled, StatusRefunded, StatusChargedBack, StatusExpired,
		StatusUpdated:
		return true
	}
	return false
}

// Scan implements sql.Scanner interface
func (s *Status) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = Status(v)
	case []byte:
		*s = Status(v)
	default:
		*s = StatusCreated
	}
	return nil
}

// Value implements driver.Valuer interface
func (s Status) Value() (driver.Value, error) {
	return string(s), nil
}

// MapStatus resolves a provider-native status string through the given
// mapping table. Unmapped values pass through uppercased so an unknown
// provider status never blocks processing.
func MapStatus(raw string, table map[string]Status) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := table[key]; ok {
		return mapped
	}
	return Status(strings.ToUpper(key))
}
