package chaos

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Shipment statuses as stored by the shipment service. Delivered and
// Cancelled are terminal: shipments in those states are never disrupted.
const (
	StatusWaitingForApproval = "WaitingForApproval"
	StatusApproved           = "Approved"
	StatusDenied             = "Denied"
	StatusAssigned           = "Assigned"
	StatusInTransit          = "InTransit"
	StatusDelivered          = "Delivered"
	StatusCancelled          = "Cancelled"
)

var ErrShipmentNotFound = errors.New("shipment not found")

type Shipment struct {
	ID          uuid.UUID `json:"id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Log is one applied chaos event, the permanent audit record.
type Log struct {
	ID               int64     `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	ShipmentID       uuid.UUID `json:"shipment_id"`
	EventType        string    `json:"event_type"`
	EventDescription string    `json:"event_description"`
	ImpactDetails    string    `json:"impact_details"`
}

// LogFilter narrows a log query; zero-value fields match everything.
type LogFilter struct {
	ShipmentID *uuid.UUID
	EventType  string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

const (
	DefaultLogPageSize = 20
	MaxLogPageSize     = 200
)

// Normalize clamps paging to sane bounds.
func (f LogFilter) Normalize() LogFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultLogPageSize
	}
	if f.PageSize > MaxLogPageSize {
		f.PageSize = MaxLogPageSize
	}
	return f
}

type LogPage struct {
	Items    []Log `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
