package store

import (
	"testing"

	"github.com/ValentinKolb/dTable/lib/db"
)

type stringerTable struct{ name string }

func (s stringerTable) String() string { return s.name }

func TestResolveTable(t *testing.T) {
	want := TableName("user")

	if got := ResolveTable("user"); got != want {
		t.Errorf("ResolveTable(string) = %q, want %q", got, want)
	}
	if got := ResolveTable(TableName("user")); got != want {
		t.Errorf("ResolveTable(TableName) = %q, want %q", got, want)
	}
	if got := ResolveTable(stringerTable{"user"}); got != want {
		t.Errorf("ResolveTable(Stringer) = %q, want %q", got, want)
	}

	// Idempotence: resolving a resolved name is the identity
	if got := ResolveTable(ResolveTable("user")); got != want {
		t.Errorf("ResolveTable is not idempotent: got %q", got)
	}
}

func TestMergeRecords(t *testing.T) {
	stored := db.Record{"a", "b", "c", "d", "e"}
	patch := db.Record{"p0", db.NoValue, "p2", db.NoValue, "p4"}

	merged, err := MergeRecords(stored, patch)
	if err != nil {
		t.Fatalf("MergeRecords failed: %v", err)
	}

	want := db.Record{"p0", "b", "p2", "d", "p4"}
	for i := range want {
		if merged[i] != want[i] {
			t.Errorf("field %d: got %v, want %v", i, merged[i], want[i])
		}
	}

	// Inputs must be untouched
	if stored[0] != "a" || patch[1] != db.NoValue {
		t.Errorf("MergeRecords mutated its inputs")
	}
}

func TestMergeRecordsArityMismatch(t *testing.T) {
	_, err := MergeRecords(db.Record{"a", "b"}, db.Record{"a"})
	if !HasCode(err, RetCAborted) {
		t.Errorf("expected RetCAborted for arity mismatch, got %v", err)
	}
}

func TestRetCodeStrings(t *testing.T) {
	codes := map[RetCode]string{
		RetCAlreadyExists:      "AlreadyExists",
		RetCNotFound:           "NotFound",
		RetCAborted:            "Aborted",
		RetCEngineFault:        "EngineFault",
		RetCAttributesNotExist: "AttributesNotExist",
		RetCSchemaMissing:      "SchemaMissing",
	}
	for code, want := range codes {
		if code.String() != want {
			t.Errorf("RetCode(%d).String() = %q, want %q", code, code.String(), want)
		}
	}
}
