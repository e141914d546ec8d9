package lstore

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

// Executor outcome counters, shared by all local store instances.
var (
	txnCommitted = metrics.GetOrCreateCounter(`dtable_txn_total{result="committed"}`)
	txnRejected  = metrics.GetOrCreateCounter(`dtable_txn_total{result="rejected"}`)
	txnAborted   = metrics.GetOrCreateCounter(`dtable_txn_total{result="aborted"}`)
	txnFaulted   = metrics.GetOrCreateCounter(`dtable_txn_total{result="faulted"}`)
	txnFatal     = metrics.GetOrCreateCounter(`dtable_txn_total{result="schema_missing"}`)
)

type storeImpl struct {
	db db.TableDB
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// This works by using a table engine from the db package directly.
func NewLocalStore(factory store.DBFactory) store.ITableStore {
	return &storeImpl{
		db: factory(),
	}
}

// NewLocalStoreFromDB wraps an existing engine instance. Used where the
// engine is shared with other components, e.g. the replicated store's state
// machine, which snapshots the engine underneath its local store.
func NewLocalStoreFromDB(database db.TableDB) store.ITableStore {
	return &storeImpl{
		db: database,
	}
}

// --------------------------------------------------------------------------
// Transaction Executor
// --------------------------------------------------------------------------

// run submits a unit of work to the engine under the given access context
// and normalizes every engine outcome into the store's closed taxonomy.
// This is the single point where engine-specific failure shapes are allowed
// to appear; nothing above it may handle them.
//
// Outcomes:
//   - success: the activity's value, unwrapped
//   - abort with a missing-schema reason: panics *store.SchemaError (fatal)
//   - abort carrying a *store.Error from accessor logic: returned as-is
//   - any other abort: *store.Error with RetCAborted, reason passed through
//   - non-abort exit: *store.Error with RetCEngineFault, stack preserved
func (s *storeImpl) run(actx db.AccessContext, act db.Activity) (interface{}, error) {
	res, err := s.db.Run(actx, act)
	if err == nil {
		txnCommitted.Inc()
		return res, nil
	}

	switch e := err.(type) {
	case *db.AbortError:
		var noExists *db.NoExistsError
		if errors.As(e.Reason, &noExists) {
			txnFatal.Inc()
			panic(&store.SchemaError{Name: noExists.Table})
		}
		var serr *store.Error
		if errors.As(e.Reason, &serr) {
			txnRejected.Inc()
			return nil, serr
		}
		txnAborted.Inc()
		return nil, store.NewError(store.RetCAborted, e.Reason.Error())
	case *db.ExitError:
		txnFaulted.Inc()
		return nil, &store.Error{
			Code:  store.RetCEngineFault,
			Msg:   fmt.Sprint(e.Reason),
			Stack: e.Stack,
		}
	default:
		return nil, store.NewError(store.RetCInternalError, err.Error())
	}
}

// direct wraps the engine calls that bypass the transaction runner (size,
// counters, traversal). The engine signals a missing table on these paths by
// panicking with its abort condition; that panic is translated into the
// store's fatal SchemaError here so the taxonomy stays uniform.
func direct[R any](fn func() R) R {
	defer func() {
		if p := recover(); p != nil {
			if abort, ok := p.(*db.AbortError); ok {
				var noExists *db.NoExistsError
				if errors.As(abort.Reason, &noExists) {
					txnFatal.Inc()
					panic(&store.SchemaError{Name: noExists.Table})
				}
			}
			panic(p)
		}
	}()
	return fn()
}

// keyResult carries a traversal result through direct.
type keyResult struct {
	key any
	ok  bool
}

// --------------------------------------------------------------------------
// Interface Methods - Record Accessor (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(table any, rec db.Record, _ ...store.Options) (db.Record, error) {
	tbl := string(store.ResolveTable(table))
	key, ok := rec.Key()
	if !ok {
		return nil, store.NewError(store.RetCAborted, "record carries no primary key")
	}

	res, err := s.run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		if _, loaded := tx.Read(tbl, key); loaded {
			return nil, store.NewError(store.RetCAlreadyExists,
				fmt.Sprintf("key %v already exists in table %q", key, tbl))
		}
		tx.Write(tbl, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(db.Record), nil
}

func (s *storeImpl) Get(table any, key any, _ ...store.Options) (db.Record, bool, error) {
	tbl := string(store.ResolveTable(table))

	res, err := s.run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		rec, loaded := tx.Read(tbl, key)
		return keyedRecord{rec: rec, loaded: loaded}, nil
	})
	if err != nil {
		return nil, false, err
	}
	kr := res.(keyedRecord)
	return kr.rec, kr.loaded, nil
}

// keyedRecord carries a Get result through the executor.
type keyedRecord struct {
	rec    db.Record
	loaded bool
}

func (s *storeImpl) Update(table any, key any, patch db.Record, _ ...store.Options) (db.Record, error) {
	tbl := string(store.ResolveTable(table))

	res, err := s.run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		stored, loaded := tx.ReadForWrite(tbl, key)
		if !loaded {
			return nil, store.NewError(store.RetCNotFound,
				fmt.Sprintf("key %v not found in table %q", key, tbl))
		}
		merged, mergeErr := store.MergeRecords(stored, patch)
		if mergeErr != nil {
			return nil, mergeErr
		}
		tx.Write(tbl, merged)
		return merged, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(db.Record), nil
}

func (s *storeImpl) Delete(table any, key any, _ ...store.Options) (any, error) {
	tbl := string(store.ResolveTable(table))

	res, err := s.run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		tx.Erase(tbl, key)
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// --------------------------------------------------------------------------
// Interface Methods - Range & Sequence Accessor (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Select(table any, spec db.MatchSpec, limit int) ([]db.Record, error) {
	tbl := string(store.ResolveTable(table))

	res, err := s.run(db.CtxTransaction, func(tx db.Tx) (interface{}, error) {
		return tx.Match(tbl, spec, limit), nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]db.Record), nil
}

func (s *storeImpl) Count(table any) (int, error) {
	tbl := string(store.ResolveTable(table))
	return direct(func() int { return s.db.Size(tbl) }), nil
}

func (s *storeImpl) Attributes(table any) ([]string, error) {
	tbl := string(store.ResolveTable(table))

	attrs, exists := s.db.Attributes(tbl)
	if !exists {
		return nil, store.NewError(store.RetCAttributesNotExist,
			fmt.Sprintf("table %q is not registered", tbl))
	}
	return attrs, nil
}

func (s *storeImpl) NextID(table any, increment int64) (int64, error) {
	tbl := string(store.ResolveTable(table))
	return direct(func() int64 { return s.db.UpdateCounter(tbl, increment) }), nil
}

func (s *storeImpl) First(table any) (any, bool, error) {
	tbl := string(store.ResolveTable(table))
	res := direct(func() keyResult {
		k, ok := s.db.First(tbl)
		return keyResult{key: k, ok: ok}
	})
	return res.key, res.ok, nil
}

func (s *storeImpl) Next(table any, key any) (any, bool, error) {
	tbl := string(store.ResolveTable(table))
	res := direct(func() keyResult {
		k, ok := s.db.Next(tbl, key)
		return keyResult{key: k, ok: ok}
	})
	return res.key, res.ok, nil
}

func (s *storeImpl) Prev(table any, key any) (any, bool, error) {
	tbl := string(store.ResolveTable(table))
	res := direct(func() keyResult {
		k, ok := s.db.Prev(tbl, key)
		return keyResult{key: k, ok: ok}
	})
	return res.key, res.ok, nil
}

func (s *storeImpl) Last(table any) (any, bool, error) {
	tbl := string(store.ResolveTable(table))
	res := direct(func() keyResult {
		k, ok := s.db.Last(tbl)
		return keyResult{key: k, ok: ok}
	})
	return res.key, res.ok, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

// CreateTable implements store.ITableProvisioner.
func (s *storeImpl) CreateTable(table any, attributes []string) error {
	tbl := string(store.ResolveTable(table))
	if err := s.db.CreateTable(tbl, attributes); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}
