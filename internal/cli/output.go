package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case Registration:
		o.printRegistration(v)
	case RegistrationList:
		o.printRegistrations(v.Registrations)
	case Session:
		o.printSession(v)
	case SessionList:
		o.printSessions(v.Sessions)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// Registration response type (matches API)
type Registration struct {
	AccountName     string `json:"account_name"`
	ExternalAccount string `json:"external_account,omitempty"`
	HasToken        bool   `json:"has_token"`
	Validated       bool   `json:"validated"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// RegistrationList response type
type RegistrationList struct {
	Registrations []Registration `json:"registrations"`
}

// Session response type
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

// SessionList response type
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (o *Output) printRegistration(r Registration) {
	_, _ = fmt.Fprintf(o.w, "Account: %s\n", r.AccountName)
	_, _ = fmt.Fprintf(o.w, "Website account: %s\n", orDash(r.ExternalAccount))
	_, _ = fmt.Fprintf(o.w, "Token issued: %s\n", yesNo(r.HasToken))
	_, _ = fmt.Fprintf(o.w, "Validated: %s\n", yesNo(r.Validated))
	_, _ = fmt.Fprintf(o.w, "Updated: %s\n", r.UpdatedAt)
}

func (o *Output) printRegistrations(rs []Registration) {
	if len(rs) == 0 {
		_, _ = fmt.Fprintln(o.w, "No registrations")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ACCOUNT\tWEBSITE ACCOUNT\tTOKEN\tVALIDATED")
	for _, r := range rs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.AccountName, orDash(r.ExternalAccount), yesNo(r.HasToken), yesNo(r.Validated))
	}
	_ = tw.Flush()
}

func (o *Output) printSession(s Session) {
	_, _ = fmt.Fprintf(o.w, "Player: %s (%s)\n", s.PlayerName, s.PlayerID)
	_, _ = fmt.Fprintf(o.w, "Account: %s\n", s.AccountName)
	_, _ = fmt.Fprintf(o.w, "Record loaded: %s\n", yesNo(s.RecordLoaded))
	_, _ = fmt.Fprintf(o.w, "Validated: %s\n", yesNo(s.Validated))
	_, _ = fmt.Fprintf(o.w, "Spawn pending: %s\n", yesNo(s.SpawnPending))
	_, _ = fmt.Fprintf(o.w, "Companion: %s\n", yesNo(s.CompanionActive))
	_, _ = fmt.Fprintf(o.w, "Awaiting confirmation: %s\n", orDash(s.Pending))
}

func (o *Output) printSessions(ss []Session) {
	if len(ss) == 0 {
		_, _ = fmt.Fprintln(o.w, "No sessions")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PLAYER\tACCOUNT\tVALIDATED\tSPAWN PENDING\tCOMPANION\tAWAITING")
	for _, s := range ss {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.PlayerName, s.AccountName, yesNo(s.Validated), yesNo(s.SpawnPending),
			yesNo(s.CompanionActive), orDash(s.Pending))
	}
	_ = tw.Flush()
}
