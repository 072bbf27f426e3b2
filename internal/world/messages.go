package world

// Outbound message types
const (
	MessageSystem        = "message"
	MessageChat          = "chat"
	MessageDialog        = "dialog"
	MessageSay           = "say"
	MessageAttack        = "attack"
	MessageSpell         = "spell"
	MessageEntitySpawned = "entity_spawned"
	MessageEntityRemoved = "entity_removed"
	MessageRegion        = "region"
)

// Message is delivered to a connected player
type Message struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	From     string `json:"from,omitempty"`
	DialogID string `json:"dialog_id,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
	EffectID int    `json:"effect_id,omitempty"`
	CastMS   int64  `json:"cast_ms,omitempty"`
	Region   string `json:"region,omitempty"`
	// Spawn placement relative to the owner
	Offset    int `json:"offset,omitempty"`
	FollowMin int `json:"follow_min,omitempty"`
	FollowMax int `json:"follow_max,omitempty"`
}
