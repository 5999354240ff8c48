package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of partitions for event subjects.
const ShardCount = 256

// GetShardID calculates the deterministic shard ID for a given entity ID.
func GetShardID(entityID string) int {
	checksum := crc32.ChecksumIEEE([]byte(entityID))
	return int(checksum % ShardCount)
}

// GetEventSubject returns the NATS subject for an applied chaos event.
// Format: chaos.event.{shard_id}.shipment.{shipment_id}
func GetEventSubject(shipmentID string) string {
	return fmt.Sprintf("chaos.event.%d.shipment.%s", GetShardID(shipmentID), shipmentID)
}
