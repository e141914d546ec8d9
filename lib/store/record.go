package store

import (
	"fmt"

	"github.com/ValentinKolb/dTable/lib/db"
)

// --------------------------------------------------------------------------
// Table Name Resolution
// --------------------------------------------------------------------------

// TableName is the canonical handle for a store table. Every external
// representation of the same table resolves to one identical TableName.
type TableName string

func (n TableName) String() string { return string(n) }

// ResolveTable normalizes a table identifier into its canonical TableName.
// Accepted inputs are the TableName itself, a plain string or any
// fmt.Stringer; anything else falls back to its formatted representation.
// Resolution is total, pure and idempotent - no validation is performed.
func ResolveTable(identifier any) TableName {
	switch v := identifier.(type) {
	case TableName:
		return v
	case string:
		return TableName(v)
	case fmt.Stringer:
		return TableName(v.String())
	default:
		return TableName(fmt.Sprint(v))
	}
}

// --------------------------------------------------------------------------
// Record Merging
// --------------------------------------------------------------------------

// MergeRecords computes the field-wise merge of a stored record and a patch
// record of identical arity: for every field index, a db.NoValue in the
// patch keeps the stored value and anything else overrides it. The merge is
// strictly positional - no field is inspected beyond the sentinel check.
func MergeRecords(stored, patch db.Record) (db.Record, error) {
	if len(stored) != len(patch) {
		return nil, NewError(RetCAborted,
			fmt.Sprintf("arity mismatch: stored record has %d fields, patch has %d", len(stored), len(patch)))
	}

	merged := make(db.Record, len(stored))
	for i := range stored {
		if patch[i] == db.NoValue {
			merged[i] = stored[i]
		} else {
			merged[i] = patch[i]
		}
	}
	return merged, nil
}
