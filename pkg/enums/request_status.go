package enums

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// RequestStatus maps to the amount_request_status_enum enum in Postgres.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusApproved,
	RequestStatusRejected,
}

func (s RequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known status.
func (s RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// ParseRequestStatus converts raw input into RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}

// Scan reads legacy NULL or empty statuses as pending.
func (s *RequestStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = RequestStatusPending
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported request status type %T", src)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		*s = RequestStatusPending
		return nil
	}
	parsed, err := ParseRequestStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s RequestStatus) Value() (driver.Value, error) {
	if s == "" {
		return string(RequestStatusPending), nil
	}
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid request status %q", s)
	}
	return string(s), nil
}
