package storage

import (
	"context"

	"github.com/mcoot/regwhelp/internal/model"
)

// RecordStore defines the interface for registration record persistence.
//
// Implementations never clear Validated: saving a record whose stored
// copy is validated keeps the stored flag set.
type RecordStore interface {
	// FindRecord returns model.ErrRecordNotFound when the account has no record
	FindRecord(ctx context.Context, accountName string) (*model.Record, error)
	// CreateRecord inserts rec; it returns model.ErrRecordExists if the account already has one
	CreateRecord(ctx context.Context, rec *model.Record) error
	// SaveRecord persists every field of rec
	SaveRecord(ctx context.Context, rec *model.Record) error
	// ListRecords returns every record ordered by account name
	ListRecords(ctx context.Context) ([]*model.Record, error)

	Close() error
}
