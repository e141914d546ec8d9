package lstore

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/db/engines/rowan"
	"github.com/ValentinKolb/dTable/lib/store"
)

// newTestStore creates a local store over a fresh rowan engine with the
// tables used by the tests already provisioned.
func newTestStore(t *testing.T) store.ITableStore {
	t.Helper()
	engine := rowan.NewRowanDB(nil)
	for table, attrs := range map[string][]string{
		"user":  {"name", "id", "mail", "age", "city"},
		"order": {"name", "id", "item"},
	} {
		if err := engine.CreateTable(table, attrs); err != nil {
			t.Fatalf("CreateTable(%s) failed: %v", table, err)
		}
	}
	return NewLocalStoreFromDB(engine)
}

func user(id any, fields ...any) db.Record {
	rec := db.Record{"user", id}
	return append(rec, fields...)
}

// expectSchemaPanic runs fn and fails the test unless it panics with the
// fatal *store.SchemaError.
func expectSchemaPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		p := recover()
		if p == nil {
			t.Errorf("expected a SchemaError panic, got none")
			return
		}
		if _, ok := p.(*store.SchemaError); !ok {
			t.Errorf("expected *store.SchemaError, got %T (%v)", p, p)
		}
	}()
	fn()
}

// --------------------------------------------------------------------------
// Record Accessor
// --------------------------------------------------------------------------

func TestInsertGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	rec := user(1, "alice", "alice@example.org", 30, "berlin")
	inserted, err := s.Insert("user", rec)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !reflect.DeepEqual(inserted, rec) {
		t.Errorf("Insert returned %v, want %v", inserted, rec)
	}

	got, loaded, err := s.Get("user", 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !loaded {
		t.Fatalf("expected record to be loaded")
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("Get returned %v, want %v", got, rec)
	}
}

func TestGetAbsentIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	rec, loaded, err := s.Get("user", 404)
	if err != nil {
		t.Errorf("Get on absent key must not error, got %v", err)
	}
	if loaded || rec != nil {
		t.Errorf("expected explicit absence, got %v (%t)", rec, loaded)
	}
}

func TestInsertTwiceReturnsAlreadyExists(t *testing.T) {
	s := newTestStore(t)

	first := user(1, "alice", "a@example.org", 30, "berlin")
	if _, err := s.Insert("user", first); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	_, err := s.Insert("user", user(1, "mallory", "m@example.org", 66, "nowhere"))
	if !store.HasCode(err, store.RetCAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}

	// The original record must be untouched
	got, _, err := s.Get("user", 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got, first) {
		t.Errorf("first record was overwritten: %v", got)
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("user", 404, user(404, db.NoValue, db.NoValue, db.NoValue, db.NoValue))
	if !store.HasCode(err, store.RetCNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if got, _ := s.Count("user"); got != 0 {
		t.Errorf("table changed by failed update, count = %d", got)
	}
}

func TestUpdateMergesPositionally(t *testing.T) {
	s := newTestStore(t)

	// Stored record {a,b,c,d,e}; patch overrides fields 0, 2 and 4
	if _, err := s.Insert("user", db.Record{"a", "b", "c", "d", "e"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	patch := db.Record{"p0", db.NoValue, "p2", db.NoValue, "p4"}
	merged, err := s.Update("user", "b", patch)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	want := db.Record{"p0", "b", "p2", "d", "p4"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("merged = %v, want %v", merged, want)
	}

	got, _, _ := s.Get("user", "b")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stored = %v, want %v", got, want)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Insert("user", user(1, "alice", "a@example.org", 30, "berlin")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	deleted, err := s.Delete("user", 1)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Delete returned %v, want the key 1", deleted)
	}

	// Deleting the now absent key succeeds as well
	deleted, err = s.Delete("user", 1)
	if err != nil {
		t.Errorf("Delete on absent key failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Delete returned %v, want the key 1", deleted)
	}
}

func TestOptionsAreAcceptedAndIgnored(t *testing.T) {
	s := newTestStore(t)

	opts := store.Options{"lock_mode": "sticky"}
	if _, err := s.Insert("user", user(1, "alice", "a@example.org", 30, "berlin"), opts); err != nil {
		t.Fatalf("Insert with options failed: %v", err)
	}
	if _, _, err := s.Get("user", 1, opts); err != nil {
		t.Fatalf("Get with options failed: %v", err)
	}
	if _, err := s.Delete("user", 1, opts); err != nil {
		t.Fatalf("Delete with options failed: %v", err)
	}
}

// --------------------------------------------------------------------------
// Range & Sequence Accessor
// --------------------------------------------------------------------------

func TestSelectBoundedAndUnbounded(t *testing.T) {
	s := newTestStore(t)

	for i := 1; i <= 5; i++ {
		if _, err := s.Insert("user", user(i, fmt.Sprintf("u%d", i), "", 20, "berlin")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	berliners := func(r db.Record) bool { return r[5] == "berlin" }

	limited, err := s.Select("user", berliners, 2)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Select with limit 2 returned %d records", len(limited))
	}

	generous, err := s.Select("user", berliners, 10)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	all, err := s.Select("user", berliners, 0)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	// A limit above the true match count is equivalent to no limit
	if !reflect.DeepEqual(generous, all) {
		t.Errorf("limit=10 returned %v, unbounded returned %v", generous, all)
	}
	if len(all) != 5 {
		t.Errorf("expected all 5 matches, got %d", len(all))
	}
}

func TestCount(t *testing.T) {
	s := newTestStore(t)

	if got, _ := s.Count("user"); got != 0 {
		t.Errorf("Count = %d on empty table", got)
	}
	for i := 1; i <= 3; i++ {
		if _, err := s.Insert("user", user(i, "u", "", 0, "")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if got, _ := s.Count("user"); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
}

func TestAttributes(t *testing.T) {
	s := newTestStore(t)

	attrs, err := s.Attributes("user")
	if err != nil {
		t.Fatalf("Attributes failed: %v", err)
	}
	want := []string{"name", "id", "mail", "age", "city"}
	if !reflect.DeepEqual(attrs, want) {
		t.Errorf("Attributes = %v, want %v", attrs, want)
	}
}

func TestSequenceIsStrictlyMonotonic(t *testing.T) {
	s := newTestStore(t)

	prev := int64(0)
	for i := 1; i <= 100; i++ {
		id, err := s.NextID("user", 1)
		if err != nil {
			t.Fatalf("NextID failed: %v", err)
		}
		if id != prev+1 {
			t.Fatalf("NextID = %d after %d, want %d", id, prev, prev+1)
		}
		prev = id
	}
}

func TestCursorTraversal(t *testing.T) {
	s := newTestStore(t)

	// Insert out of key order
	for _, k := range []int{2, 3, 1} {
		if _, err := s.Insert("user", user(k, "u", "", 0, "")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if k, ok, _ := s.First("user"); !ok || k != 1 {
		t.Errorf("First = %v (%t), want 1", k, ok)
	}
	if k, ok, _ := s.Next("user", 1); !ok || k != 2 {
		t.Errorf("Next(1) = %v (%t), want 2", k, ok)
	}
	if k, ok, _ := s.Next("user", 2); !ok || k != 3 {
		t.Errorf("Next(2) = %v (%t), want 3", k, ok)
	}
	if _, ok, _ := s.Next("user", 3); ok {
		t.Errorf("Next(3) must translate end-of-table to absence")
	}
	if k, ok, _ := s.Last("user"); !ok || k != 3 {
		t.Errorf("Last = %v (%t), want 3", k, ok)
	}
	if k, ok, _ := s.Prev("user", 2); !ok || k != 1 {
		t.Errorf("Prev(2) = %v (%t), want 1", k, ok)
	}
	if _, ok, _ := s.Prev("user", 1); ok {
		t.Errorf("Prev(1) must translate end-of-table to absence")
	}
}

func TestCursorOnEmptyTable(t *testing.T) {
	s := newTestStore(t)

	if _, ok, _ := s.First("user"); ok {
		t.Errorf("First on empty table must report absence")
	}
	if _, ok, _ := s.Last("user"); ok {
		t.Errorf("Last on empty table must report absence")
	}
}

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

func TestAttributesOnMissingTableIsAnErrorValue(t *testing.T) {
	s := newTestStore(t)

	// The defensive probe: an error value, never a panic
	_, err := s.Attributes("ghost")
	if !store.HasCode(err, store.RetCAttributesNotExist) {
		t.Errorf("expected AttributesNotExist, got %v", err)
	}
}

func TestMissingTableIsFatalEverywhereElse(t *testing.T) {
	s := newTestStore(t)

	expectSchemaPanic(t, func() { s.Insert("ghost", user(1, "a", "", 0, "")) })
	expectSchemaPanic(t, func() { s.Get("ghost", 1) })
	expectSchemaPanic(t, func() { s.Update("ghost", 1, user(1, "a", "", 0, "")) })
	expectSchemaPanic(t, func() { s.Delete("ghost", 1) })
	expectSchemaPanic(t, func() { s.Select("ghost", func(db.Record) bool { return true }, 0) })
	expectSchemaPanic(t, func() { s.Count("ghost") })
	expectSchemaPanic(t, func() { s.NextID("ghost", 1) })
	expectSchemaPanic(t, func() { s.First("ghost") })
	expectSchemaPanic(t, func() { s.Next("ghost", 1) })
	expectSchemaPanic(t, func() { s.Prev("ghost", 1) })
	expectSchemaPanic(t, func() { s.Last("ghost") })
}

func TestPanickingMatchSpecBecomesEngineFault(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Insert("user", user(1, "alice", "", 0, "")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	_, err := s.Select("user", func(db.Record) bool { panic("bad spec") }, 0)
	if !store.HasCode(err, store.RetCEngineFault) {
		t.Fatalf("expected EngineFault, got %v", err)
	}
	if serr := err.(*store.Error); len(serr.Stack) == 0 {
		t.Errorf("expected the execution stack to be preserved")
	}
}

// --------------------------------------------------------------------------
// Concurrency
// --------------------------------------------------------------------------

func TestConcurrentInsertSameKey(t *testing.T) {
	s := newTestStore(t)

	const callers = 2
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		oks    int
		exists int
	)

	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			_, err := s.Insert("user", user(1, fmt.Sprintf("caller-%d", c), "", 0, ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				oks++
			case store.HasCode(err, store.RetCAlreadyExists):
				exists++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(c)
	}
	wg.Wait()

	if oks != 1 || exists != callers-1 {
		t.Errorf("expected exactly one winner, got %d ok / %d already-exists", oks, exists)
	}

	// Exactly one record, not corrupted
	if got, _ := s.Count("user"); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	rec, loaded, err := s.Get("user", 1)
	if err != nil || !loaded {
		t.Fatalf("Get failed: %v (%t)", err, loaded)
	}
	if len(rec) != 6 || rec[0] != "user" || rec[1] != 1 {
		t.Errorf("stored record is corrupted: %v", rec)
	}
}

func TestConcurrentNextID(t *testing.T) {
	s := newTestStore(t)

	const (
		workers = 4
		calls   = 50
	)
	seen := make(chan int64, workers*calls)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				id, _ := s.NextID("order", 1)
				seen <- id
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for id := range seen {
		if unique[id] {
			t.Fatalf("NextID produced the duplicate %d", id)
		}
		unique[id] = true
	}
	if len(unique) != workers*calls {
		t.Errorf("expected %d unique ids, got %d", workers*calls, len(unique))
	}
}

func TestGetDBInfo(t *testing.T) {
	s := newTestStore(t)

	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.DbType != db.ImplRowan {
		t.Errorf("DbType = %v, want %v", info.DbType, db.ImplRowan)
	}
	if info.NumTables != 2 {
		t.Errorf("NumTables = %d, want 2", info.NumTables)
	}
}
