package eventbus

import (
	"github.com/kstaniek/groundstation/internal/registry"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// TelemetryBatch is the payload of a TopicTelemetryUpdate event: one tick's
// worth of decoded packets across every device, plus the endpoint delta
// observed in the same tick (nil if unchanged).
type TelemetryBatch struct {
	Packets   []telemetry.DecodedPacket
	Endpoints []registry.Endpoint
}

// CatalogueChangeKind distinguishes the three mutation kinds a
// TopicCatalogueUpdate event reports.
type CatalogueChangeKind string

const (
	CatalogueFormatCreated CatalogueChangeKind = "created"
	CatalogueFormatUpdated CatalogueChangeKind = "updated"
	CatalogueFormatDeleted CatalogueChangeKind = "deleted"
)

// CatalogueChange is the payload of a TopicCatalogueUpdate event.
type CatalogueChange struct {
	Kind       CatalogueChangeKind
	FormatID   uint64
	FormatName string
}
