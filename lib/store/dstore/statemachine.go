package dstore

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/store"
	"github.com/ValentinKolb/dTable/lib/store/dstore/internal"
	"github.com/ValentinKolb/dTable/lib/store/lstore"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// TableStateMachine is a state machine implementation for Dragonboat RAFT.
// Every replica holds the full engine and a local store wrapped around it;
// commands from the raft log are applied through the local store so that the
// executor's error normalization runs identically on every node.
type TableStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.TableDB        // the actual data storage, kept for snapshots
	local     store.ITableStore // normalizing wrapper, applies commands and queries
}

// CreateStateMachineFactory returns a function that can be used by dragonboat
// to create a new state machine for a node host. The factory pattern is used
// to enable the caller to pass an interchangeable dbFactory.
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		database := dbFactory()
		return &TableStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  database,
			local:     lstore.NewLocalStoreFromDB(database),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the
// corresponding local store method. The local store panics *store.SchemaError
// for queries against unregistered tables; the panic must not take down the
// raft node, so it is converted into the SchemaMissing return code here and
// re-raised on the client side.
func (fsm *TableStateMachine) Lookup(itf interface{}) (res interface{}, err error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	defer func() {
		if p := recover(); p != nil {
			se, ok := p.(*store.SchemaError)
			if !ok {
				panic(p)
			}
			res, err = nil, store.NewError(store.RetCSchemaMissing, se.Name)
		}
	}()

	switch q.Type {
	case internal.QueryTGet:
		rec, loaded, err := fsm.local.Get(q.Table, q.Key)
		if err != nil {
			return nil, err
		}
		return internal.RecordResult{Record: rec, Loaded: loaded}, nil
	case internal.QueryTSelect:
		return fsm.local.Select(q.Table, q.Spec, q.Limit)
	case internal.QueryTCount:
		return fsm.local.Count(q.Table)
	case internal.QueryTAttributes:
		return fsm.local.Attributes(q.Table)
	case internal.QueryTFirst:
		k, ok, err := fsm.local.First(q.Table)
		return internal.KeyResult{Key: k, Ok: ok}, err
	case internal.QueryTNext:
		k, ok, err := fsm.local.Next(q.Table, q.Key)
		return internal.KeyResult{Key: k, Ok: ok}, err
	case internal.QueryTPrev:
		k, ok, err := fsm.local.Prev(q.Table, q.Key)
		return internal.KeyResult{Key: k, Ok: ok}, err
	case internal.QueryTLast:
		k, ok, err := fsm.local.Last(q.Table)
		return internal.KeyResult{Key: k, Ok: ok}, err
	case internal.QueryTGetDBInfo:
		return fsm.local.GetDBInfo()
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles mutating commands on the table engine. All commands are
// serialized into []byte and are accessible via the entries struct.
func (fsm *TableStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
			continue
		}

		// Deserialize the command
		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
			continue
		}

		// Check if the engine supports the operation
		feat, err := cmd.Type.ToDBFeature()
		if err != nil {
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCInvalidOperation),
				Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
			}
			continue
		}
		if !fsm.database.SupportsFeature(feat) {
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCInvalidOperation),
				Data:  []byte(fmt.Sprintf("%s operation is not supported", cmd.Type)),
			}
			continue
		}

		entries[idx].Result = fsm.apply(cmd)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms",
			len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single command on the local store and packs the outcome
// into the entry result: return code in Value, gob payload or message in
// Data. A SchemaError panic is caught and encoded as the SchemaMissing code
// with the offending table name as payload.
func (fsm *TableStateMachine) apply(cmd internal.Command) (result sm.Result) {
	defer func() {
		if p := recover(); p != nil {
			se, ok := p.(*store.SchemaError)
			if !ok {
				panic(p)
			}
			result = sm.Result{Value: uint64(store.RetCSchemaMissing), Data: []byte(se.Name)}
		}
	}()

	var payload internal.CommandResult
	switch cmd.Type {
	case internal.CommandTInsert:
		rec, err := fsm.local.Insert(cmd.Table, cmd.Record)
		if err != nil {
			return errResult(err)
		}
		payload.Record = rec
	case internal.CommandTUpdate:
		rec, err := fsm.local.Update(cmd.Table, cmd.Key, cmd.Record)
		if err != nil {
			return errResult(err)
		}
		payload.Record = rec
	case internal.CommandTDelete:
		key, err := fsm.local.Delete(cmd.Table, cmd.Key)
		if err != nil {
			return errResult(err)
		}
		payload.Key = key
	case internal.CommandTNextID:
		id, err := fsm.local.NextID(cmd.Table, cmd.Increment)
		if err != nil {
			return errResult(err)
		}
		payload.ID = id
	case internal.CommandTCreateTable:
		if err := fsm.database.CreateTable(cmd.Table, cmd.Attributes); err != nil {
			return errResult(err)
		}
	default:
		return sm.Result{
			Value: uint64(store.RetCInvalidOperation),
			Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
		}
	}

	data, err := payload.Serialize()
	if err != nil {
		return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(err.Error())}
	}
	return sm.Result{Value: uint64(store.RetCSuccess), Data: data}
}

// errResult converts an accessor error into an entry result, preserving the
// return code of typed store errors.
func errResult(err error) sm.Result {
	if serr, ok := err.(*store.Error); ok {
		return sm.Result{Value: uint64(serr.Code), Data: []byte(serr.Msg)}
	}
	return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(err.Error())}
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use
// fuzzy snapshotting.
func (fsm *TableStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy engine snapshot to the writer.
func (fsm *TableStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used TableDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot restores the engine from a snapshot stream.
func (fsm *TableStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used TableDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *TableStateMachine) Close() error {
	return fsm.database.Close()
}
