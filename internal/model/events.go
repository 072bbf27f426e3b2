package model

// EventType identifies the type of host lifecycle event
type EventType string

const (
	// Player lifecycle events
	EventEnteredWorld  EventType = "entered_world"
	EventRegionChanged EventType = "region_changed"
	EventLevelUp       EventType = "level_up"
	EventQuit          EventType = "quit"
	EventDeleted       EventType = "deleted"
	EventReleased      EventType = "released"
	EventLinkDeath     EventType = "link_death"

	// Entity lifecycle events
	EventEntityRemoved EventType = "entity_removed"
	EventEntityDied    EventType = "entity_died"
	EventInteract      EventType = "interact"
)

// ActivitySignals are the player events that may schedule a companion spawn
var ActivitySignals = []EventType{
	EventEnteredWorld,
	EventRegionChanged,
	EventLevelUp,
	EventReleased,
}

// SessionEndSignals are the player events that end a companion's escort
var SessionEndSignals = []EventType{
	EventQuit,
	EventDeleted,
	EventReleased,
	EventLinkDeath,
	EventRegionChanged,
}

// EntityGoneSignals are the entity events that mean it left the world
var EntityGoneSignals = []EventType{
	EventEntityRemoved,
	EventEntityDied,
}

// AllEvents lists every lifecycle event type once
var AllEvents = []EventType{
	EventEnteredWorld,
	EventRegionChanged,
	EventLevelUp,
	EventQuit,
	EventDeleted,
	EventReleased,
	EventLinkDeath,
	EventEntityRemoved,
	EventEntityDied,
	EventInteract,
}
