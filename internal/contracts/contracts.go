package contracts

import "time"

// EventApplied is published by chaos-api after a chaos event has been
// durably applied to a shipment, and consumed by event-streamer for the
// real-time admin feed. Subscribers that connect later never see it;
// history lives in the chaos event log table.
type EventApplied struct {
	LogID            int64     `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	ShipmentID       string    `json:"shipment_id"`
	EventType        string    `json:"event_type"`
	EventDescription string    `json:"event_description"`
	ImpactDetails    string    `json:"impact_details"`
	ShardID          int       `json:"shard_id"`
}
