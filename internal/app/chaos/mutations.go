package chaos

// Mutation describes how a chaos event type changes a shipment. Event
// types without a registered mutation are logged but leave the shipment
// untouched.
type Mutation struct {
	Status string
	Impact string
}

// DefaultRegistry maps the stock event types to their shipment
// mutations. Every stock disruption forces the shipment back in
// transit; the impact text is what operators see in the log feed.
func DefaultRegistry() map[string]Mutation {
	return map[string]Mutation{
		"AsteroidStrike": {
			Status: StatusInTransit,
			Impact: "Shipment delayed by asteroid impact. Status set to InTransit.",
		},
		"PirateAttack": {
			Status: StatusInTransit,
			Impact: "Shipment attacked by pirates, delayed and flagged for review. Status set to InTransit.",
		},
		"SolarFlare": {
			Status: StatusInTransit,
			Impact: "Solar flare caused communication blackout, delivery delayed. Status set to InTransit.",
		},
		"EngineFailure": {
			Status: StatusInTransit,
			Impact: "Engine failure, shipment rerouted and delayed. Status set to InTransit.",
		},
		"CustomsInspection": {
			Status: StatusInTransit,
			Impact: "Held for customs inspection, delivery delayed. Status set to InTransit.",
		},
	}
}
