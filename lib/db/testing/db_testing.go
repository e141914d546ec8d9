package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dTable/lib/db"
)

// DBFactory is a function that creates a new instance of a TableDB implementation
type DBFactory func() db.TableDB

// RunTableDBTests runs a comprehensive test suite for a TableDB implementation.
func RunTableDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Schema", func(t *testing.T) {
			testSchema(t, factory())
		})

		t.Run("Transaction", func(t *testing.T) {
			testTransaction(t, factory())
		})

		t.Run("Rollback", func(t *testing.T) {
			testRollback(t, factory())
		})

		t.Run("MissingTableAborts", func(t *testing.T) {
			testMissingTableAborts(t, factory())
		})

		t.Run("ExitCapture", func(t *testing.T) {
			testExitCapture(t, factory())
		})

		t.Run("Match", func(t *testing.T) {
			testMatch(t, factory())
		})

		t.Run("Counter", func(t *testing.T) {
			testCounter(t, factory())
		})

		t.Run("Traversal", func(t *testing.T) {
			testTraversal(t, factory())
		})

		t.Run("DirtyContext", func(t *testing.T) {
			testDirtyContext(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.TableDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// mustCreate registers a table and fails the test on error
func mustCreate(t testing.TB, database db.TableDB, table string, attrs ...string) {
	if err := database.CreateTable(table, attrs); err != nil {
		t.Fatalf("CreateTable(%s) failed: %v", table, err)
	}
}

// rec builds a record for the given table with key and payload fields
func rec(table string, key any, fields ...any) db.Record {
	r := db.Record{table, key}
	return append(r, fields...)
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSchema(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSchema)

	mustCreate(t, database, "user", "name", "id", "mail")

	attrs, exists := database.Attributes("user")
	if !exists {
		t.Fatalf("Expected table user to exist after CreateTable")
	}
	if len(attrs) != 3 || attrs[0] != "name" || attrs[1] != "id" || attrs[2] != "mail" {
		t.Errorf("Unexpected attributes: %v", attrs)
	}

	// Creating the same table again must not reset it
	mustCreate(t, database, "user", "other")
	attrs, _ = database.Attributes("user")
	if len(attrs) != 3 {
		t.Errorf("Expected CreateTable to be a no-op for existing tables, got attrs %v", attrs)
	}

	if _, exists := database.Attributes("nope"); exists {
		t.Errorf("Expected unknown table to report exists=false")
	}
}

func testTransaction(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureTransaction)
	mustCreate(t, database, "user", "id", "name")

	stored := rec("user", 1, "alice")

	// Write and read back within one transaction
	res, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		tx.Write("user", stored)
		got, loaded := tx.Read("user", 1)
		if !loaded {
			return nil, fmt.Errorf("own write not visible")
		}
		return got, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := res.(db.Record); got[2] != "alice" {
		t.Errorf("Expected alice, got %v", got[2])
	}

	// The committed record must be visible to a second transaction
	res, err = database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		got, loaded := tx.Read("user", 1)
		if !loaded {
			return nil, fmt.Errorf("committed write not visible")
		}
		return got, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := res.(db.Record); got[2] != "alice" {
		t.Errorf("Expected alice after commit, got %v", got[2])
	}
}

func testRollback(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureTransaction)
	mustCreate(t, database, "user", "id", "name")

	boom := errors.New("boom")
	_, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		tx.Write("user", rec("user", 1, "alice"))
		return nil, boom
	})

	var abort *db.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("Expected *db.AbortError, got %T (%v)", err, err)
	}
	if !errors.Is(abort.Reason, boom) {
		t.Errorf("Expected the activity error as abort reason, got %v", abort.Reason)
	}

	// The write must have been rolled back
	_, err = database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		if _, loaded := tx.Read("user", 1); loaded {
			return nil, fmt.Errorf("rolled-back write still visible")
		}
		return nil, nil
	})
	if err != nil {
		t.Errorf("Run failed: %v", err)
	}
}

func testMissingTableAborts(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureTransaction)

	_, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		tx.Read("ghost", 1)
		return nil, nil
	})

	var abort *db.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("Expected *db.AbortError, got %T (%v)", err, err)
	}
	var noExists *db.NoExistsError
	if !errors.As(abort.Reason, &noExists) || noExists.Table != "ghost" {
		t.Errorf("Expected NoExistsError for ghost, got %v", abort.Reason)
	}
}

func testExitCapture(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureTransaction)

	_, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		panic("kaboom")
	})

	var exit *db.ExitError
	if !errors.As(err, &exit) {
		t.Fatalf("Expected *db.ExitError, got %T (%v)", err, err)
	}
	if exit.Reason != "kaboom" {
		t.Errorf("Expected panic value as reason, got %v", exit.Reason)
	}
	if len(exit.Stack) == 0 {
		t.Errorf("Expected a captured stack")
	}
}

func testMatch(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureTransaction|db.FeatureMatch)
	mustCreate(t, database, "user", "id", "name", "age")

	_, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		for i := 1; i <= 5; i++ {
			tx.Write("user", rec("user", i, fmt.Sprintf("u%d", i), 20+i))
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	adults := func(r db.Record) bool { return r[3].(int) >= 23 }

	res, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		return tx.Match("user", adults, 0), nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := res.([]db.Record); len(got) != 3 {
		t.Errorf("Expected 3 matches, got %d", len(got))
	}

	res, err = database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		return tx.Match("user", adults, 2), nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got := res.([]db.Record)
	if len(got) != 2 {
		t.Fatalf("Expected 2 limited matches, got %d", len(got))
	}
	// Results come back in key order
	if k0, _ := got[0].Key(); k0 != 3 {
		t.Errorf("Expected first limited match at key 3, got %v", k0)
	}
}

func testCounter(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureCounter)
	mustCreate(t, database, "user", "id")

	for i := int64(1); i <= 10; i++ {
		if got := database.UpdateCounter("user", 1); got != i {
			t.Errorf("Expected counter value %d, got %d", i, got)
		}
	}
	if got := database.UpdateCounter("user", 5); got != 15 {
		t.Errorf("Expected counter value 15, got %d", got)
	}
}

func testTraversal(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureTransaction|db.FeatureTraverse)
	mustCreate(t, database, "user", "id")

	if _, ok := database.First("user"); ok {
		t.Errorf("Expected end-of-table on empty table")
	}

	_, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		// Insertion order differs from key order on purpose
		for _, k := range []int{2, 3, 1} {
			tx.Write("user", rec("user", k))
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if k, ok := database.First("user"); !ok || k != 1 {
		t.Errorf("First = %v (%t), want 1", k, ok)
	}
	if k, ok := database.Next("user", 1); !ok || k != 2 {
		t.Errorf("Next(1) = %v (%t), want 2", k, ok)
	}
	if _, ok := database.Next("user", 3); ok {
		t.Errorf("Next(3) should hit end-of-table")
	}
	if k, ok := database.Last("user"); !ok || k != 3 {
		t.Errorf("Last = %v (%t), want 3", k, ok)
	}
	if k, ok := database.Prev("user", 3); !ok || k != 2 {
		t.Errorf("Prev(3) = %v (%t), want 2", k, ok)
	}
	if _, ok := database.Prev("user", 1); ok {
		t.Errorf("Prev(1) should hit end-of-table")
	}

	if got := database.Size("user"); got != 3 {
		t.Errorf("Size = %d, want 3", got)
	}
}

func testDirtyContext(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureDirty)
	mustCreate(t, database, "user", "id", "name")

	_, err := database.Run(db.CtxDirty, func(tx db.Tx) (interface{}, error) {
		tx.Write("user", rec("user", 1, "alice"))
		return nil, nil
	})
	if err != nil {
		t.Fatalf("dirty Run failed: %v", err)
	}

	res, err := database.Run(db.CtxDirty, func(tx db.Tx) (interface{}, error) {
		got, loaded := tx.Read("user", 1)
		return loaded && got[2] == "alice", nil
	})
	if err != nil {
		t.Fatalf("dirty Run failed: %v", err)
	}
	if res != true {
		t.Errorf("Expected dirty write to be visible")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()

	requireFeature(t, database, db.FeatureSave|db.FeatureLoad)
	mustCreate(t, database, "user", "id", "name")

	_, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		tx.Write("user", rec("user", 1, "alice"))
		tx.Write("user", rec("user", 2, "bob"))
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	database.UpdateCounter("user", 7)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := factory()
	defer restored.Close()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	res, err := restored.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		got, loaded := tx.Read("user", 2)
		return loaded && got[2] == "bob", nil
	})
	if err != nil {
		t.Fatalf("Run on restored db failed: %v", err)
	}
	if res != true {
		t.Errorf("Expected record to survive save/load")
	}

	if got := restored.UpdateCounter("user", 0); got != 7 {
		t.Errorf("Expected counter to survive save/load, got %d", got)
	}
	if got := restored.Size("user"); got != 2 {
		t.Errorf("Expected size 2 after load, got %d", got)
	}
}

func testConcurrentWriters(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureTransaction)
	mustCreate(t, database, "counter", "id", "value")

	const (
		workers    = 4
		increments = 25
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				_, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
					val := 0
					if cur, loaded := tx.ReadForWrite("counter", 1); loaded {
						val = cur[2].(int)
					}
					tx.Write("counter", rec("counter", 1, val+1))
					return nil, nil
				})
				if err != nil {
					t.Errorf("Run failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	res, err := database.Run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		cur, _ := tx.Read("counter", 1)
		return cur[2], nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res != workers*increments {
		t.Errorf("Lost updates: expected %d, got %v", workers*increments, res)
	}
}
