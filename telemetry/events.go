package telemetry

import "github.com/pthm-cable/horde/components"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventSpawn EventType = iota
	EventDeath
	EventCarbonize
	EventWallDestroyed
	EventTrainMerge
	EventTrainPromote
)

func (t EventType) String() string {
	switch t {
	case EventSpawn:
		return "spawn"
	case EventDeath:
		return "death"
	case EventCarbonize:
		return "carbonize"
	case EventWallDestroyed:
		return "wall_destroyed"
	case EventTrainMerge:
		return "train_merge"
	case EventTrainPromote:
		return "train_promote"
	default:
		return "unknown"
	}
}

// Event represents a single telemetry event.
type Event struct {
	Type     EventType
	Tick     int
	EntityID uint32
	Kind     components.Kind

	// Optional fields depending on event type
	TargetID uint32 // train or wall id
	X, Y     float64
}

// EventCSV is the flattened CSV row for an Event.
type EventCSV struct {
	Tick     int     `csv:"tick"`
	Type     string  `csv:"type"`
	EntityID uint32  `csv:"entity_id"`
	Kind     string  `csv:"kind"`
	TargetID uint32  `csv:"target_id"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
}

// ToCSV converts an event to its CSV row form.
func (e Event) ToCSV() EventCSV {
	return EventCSV{
		Tick:     e.Tick,
		Type:     e.Type.String(),
		EntityID: e.EntityID,
		Kind:     e.Kind.String(),
		TargetID: e.TargetID,
		X:        e.X,
		Y:        e.Y,
	}
}

// NewSpawnEvent creates a spawn event.
func NewSpawnEvent(tick int, id uint32, kind components.Kind, x, y float64) Event {
	return Event{Type: EventSpawn, Tick: tick, EntityID: id, Kind: kind, X: x, Y: y}
}

// NewDeathEvent creates a death event.
func NewDeathEvent(tick int, id uint32, kind components.Kind, x, y float64) Event {
	return Event{Type: EventDeath, Tick: tick, EntityID: id, Kind: kind, X: x, Y: y}
}

// NewCarbonizeEvent creates a carbonize event.
func NewCarbonizeEvent(tick int, id uint32, kind components.Kind) Event {
	return Event{Type: EventCarbonize, Tick: tick, EntityID: id, Kind: kind}
}

// NewWallDestroyedEvent creates a wall destruction event attributed to
// the agent that landed the final hit.
func NewWallDestroyedEvent(tick int, byID uint32, kind components.Kind, x, y float64) Event {
	return Event{Type: EventWallDestroyed, Tick: tick, EntityID: byID, Kind: kind, X: x, Y: y}
}

// NewTrainMergeEvent creates a train merge event. EntityID is the absorbed
// head, TargetID the destination train.
func NewTrainMergeEvent(tick int, headID uint32, trainID uint32) Event {
	return Event{Type: EventTrainMerge, Tick: tick, EntityID: headID, Kind: components.KindLineHead, TargetID: trainID}
}

// NewTrainPromoteEvent creates a marker promotion event. EntityID is the new
// head, TargetID the dissolving train.
func NewTrainPromoteEvent(tick int, headID uint32, trainID uint32, x, y float64) Event {
	return Event{Type: EventTrainPromote, Tick: tick, EntityID: headID, Kind: components.KindLineHead, TargetID: trainID, X: x, Y: y}
}
