package model

// PendingOperation is the confirmation a session is waiting on.
// A nil PendingOperation means nothing is pending.
type PendingOperation interface {
	pendingOperation()
	// OperationID identifies the dialog the confirmation was issued with
	OperationID() string
	// Payload returns the argument the confirmation was issued for
	Payload() string
}

// AwaitingAccountConfirm waits on a yes/no to bind an external account
type AwaitingAccountConfirm struct {
	ID              string
	ExternalAccount string
}

// AwaitingTokenConfirm waits on a yes/no to validate with a token
type AwaitingTokenConfirm struct {
	ID    string
	Token string
}

func (AwaitingAccountConfirm) pendingOperation() {}
func (AwaitingTokenConfirm) pendingOperation()   {}

func (p AwaitingAccountConfirm) OperationID() string { return p.ID }
func (p AwaitingTokenConfirm) OperationID() string   { return p.ID }

func (p AwaitingAccountConfirm) Payload() string { return p.ExternalAccount }
func (p AwaitingTokenConfirm) Payload() string   { return p.Token }
