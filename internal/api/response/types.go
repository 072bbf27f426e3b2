package response

import (
	"time"

	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/session"
)

// Health is the response for the health endpoint
type Health struct {
	Status string `json:"status"`
}

// Registration represents a registration record in API responses.
// The token itself is never exposed.
type Registration struct {
	AccountName     string    `json:"account_name"`
	ExternalAccount string    `json:"external_account,omitempty"`
	HasToken        bool      `json:"has_token"`
	Validated       bool      `json:"validated"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RegistrationFromModel converts a model.Record
func RegistrationFromModel(r *model.Record) Registration {
	return Registration{
		AccountName:     r.AccountName,
		ExternalAccount: r.ExternalAccount,
		HasToken:        r.Token != "",
		Validated:       r.Validated,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// RegistrationList is the response for listing registrations
type RegistrationList struct {
	Registrations []Registration `json:"registrations"`
}

// Session represents a live player session
type Session struct {
	PlayerID        string `json:"player_id"`
	PlayerName      string `json:"player_name"`
	AccountName     string `json:"account_name"`
	RecordLoaded    bool   `json:"record_loaded"`
	Validated       bool   `json:"validated"`
	SpawnPending    bool   `json:"spawn_pending"`
	CompanionActive bool   `json:"companion_active"`
	Pending         string `json:"pending,omitempty"`
}

// SessionFromSnapshot converts a session.Snapshot
func SessionFromSnapshot(s session.Snapshot) Session {
	return Session{
		PlayerID:        s.PlayerID,
		PlayerName:      s.PlayerName,
		AccountName:     s.AccountName,
		RecordLoaded:    s.RecordLoaded,
		Validated:       s.Validated,
		SpawnPending:    s.SpawnPending,
		CompanionActive: s.CompanionActive,
		Pending:         s.Pending,
	}
}

// SessionList is the response for listing sessions
type SessionList struct {
	Sessions []Session `json:"sessions"`
}
