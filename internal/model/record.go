package model

import (
	"regexp"
	"strings"
	"time"
)

const (
	// TokenMarker prefixes every validation token
	TokenMarker = "#"
	// TokenDigits is the number of digits in a validation token
	TokenDigits = 10
)

var bareTokenPattern = regexp.MustCompile(`^[0-9]{10}$`)

// Record is the durable registration state of one game account
type Record struct {
	AccountName     string    `json:"account_name"`     // primary key (immutable)
	ExternalAccount string    `json:"external_account"` // empty until claimed
	Token           string    `json:"token"`            // empty until an account is claimed
	Validated       bool      `json:"validated"`        // terminal once true
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewRecord returns a blank, unvalidated record for an account
func NewRecord(accountName string, now time.Time) *Record {
	return &Record{
		AccountName: accountName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasExternalAccount reports whether an external account has been claimed
func (r *Record) HasExternalAccount() bool {
	return r.ExternalAccount != ""
}

// BindExternalAccount claims an external account and replaces the token.
// Any previously issued token stops validating.
func (r *Record) BindExternalAccount(externalAccount, token string, now time.Time) error {
	if r.Validated {
		return ErrAlreadyValidated
	}
	r.ExternalAccount = externalAccount
	r.Token = token
	r.UpdatedAt = now
	return nil
}

// Validate marks the record validated if token is the current token
func (r *Record) Validate(token string, now time.Time) error {
	if r.Validated {
		return ErrAlreadyValidated
	}
	if !r.HasExternalAccount() {
		return ErrNoExternalAccount
	}
	if r.Token == "" || token != r.Token {
		return ErrTokenMismatch
	}
	r.Validated = true
	r.UpdatedAt = now
	return nil
}

// Clone returns a copy safe to hand across goroutines
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// NormalizeRegisterArgument canonicalizes a register argument.
// Ten bare digits become a marked token; isToken reports whether the
// result should be treated as a token rather than an account name.
func NormalizeRegisterArgument(arg string) (normalized string, isToken bool) {
	if bareTokenPattern.MatchString(arg) {
		arg = TokenMarker + arg
	}
	return arg, strings.HasPrefix(arg, TokenMarker)
}

// IsWellFormedToken reports whether s is a marker followed by exactly TokenDigits digits
func IsWellFormedToken(s string) bool {
	rest, ok := strings.CutPrefix(s, TokenMarker)
	return ok && bareTokenPattern.MatchString(rest)
}
