package internal

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dTable/lib/db"
)

// TestCommandRoundTrip verifies that dynamically typed keys and record
// fields, the NoValue sentinel included, survive the log encoding.
func TestCommandRoundTrip(t *testing.T) {
	cmd := Command{
		Type:   CommandTUpdate,
		Table:  "user",
		Key:    uint64(42),
		Record: db.Record{"user", uint64(42), db.NoValue, "alice", []byte{0, 255}, 3.14},
	}

	data, err := cmd.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	var got Command
	if err := got.Deserialize(data); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if !reflect.DeepEqual(got, cmd) {
		t.Errorf("round trip changed the command:\ngot  %#v\nwant %#v", got, cmd)
	}
	if got.Record[2] != db.NoValue {
		t.Errorf("NoValue sentinel lost its identity: %#v", got.Record[2])
	}
}

func TestCommandDeserializeErrors(t *testing.T) {
	var cmd Command
	if err := cmd.Deserialize(nil); err == nil {
		t.Error("expected an error for empty data")
	}
	if err := cmd.Deserialize([]byte("not a gob stream")); err == nil {
		t.Error("expected an error for garbage data")
	}
}

func TestCommandResultRoundTrip(t *testing.T) {
	res := CommandResult{
		Record: db.Record{"user", 1, "alice"},
		Key:    1,
		ID:     7,
	}

	data, err := res.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	var got CommandResult
	if err := got.Deserialize(data); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if !reflect.DeepEqual(got, res) {
		t.Errorf("round trip changed the result:\ngot  %#v\nwant %#v", got, res)
	}
}

func TestToDBFeature(t *testing.T) {
	tests := []struct {
		ct   CommandType
		want db.Feature
	}{
		{CommandTInsert, db.FeatureTransaction},
		{CommandTUpdate, db.FeatureTransaction},
		{CommandTDelete, db.FeatureTransaction},
		{CommandTNextID, db.FeatureCounter},
		{CommandTCreateTable, db.FeatureSchema},
	}
	for _, tt := range tests {
		got, err := tt.ct.ToDBFeature()
		if err != nil {
			t.Errorf("ToDBFeature(%s) error = %v", tt.ct, err)
		}
		if got != tt.want {
			t.Errorf("ToDBFeature(%s) = %v, want %v", tt.ct, got, tt.want)
		}
	}

	if _, err := CommandType(99).ToDBFeature(); err == nil {
		t.Error("expected an error for an unknown command type")
	}
}
