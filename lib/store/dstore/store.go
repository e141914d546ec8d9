package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/store"
	"github.com/ValentinKolb/dTable/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the replicated implementation of the store.ITableStore
// interface. It encapsulates a Dragonboat NodeHost which is used to
// communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses
// raft consensus to ensure strict linearizability across multiple nodes.
// The returned store also implements store.ITableProvisioner.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.ITableStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write proposes a Command into the raft log via SyncPropose and decodes the
// outcome. The closed error taxonomy crosses the wire as return codes: a
// SchemaMissing code is converted back into the fatal *store.SchemaError
// panic here, so replicated and local stores fail identically.
func (s *storeImpl) write(cmd internal.Command) (internal.CommandResult, error) {
	var zero internal.CommandResult

	data, err := cmd.Serialize()
	if err != nil {
		return zero, store.NewError(store.RetCInternalError, err.Error())
	}

	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncPropose(ctx, s.cs, data)
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		switch store.RetCode(res.Value) {
		case store.RetCSuccess:
			var payload internal.CommandResult
			if err := payload.Deserialize(res.Data); err != nil {
				return zero, store.NewError(store.RetCInternalError, err.Error())
			}
			return payload, nil
		case store.RetCSchemaMissing:
			panic(&store.SchemaError{Name: string(res.Data)})
		default:
			return zero, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function that queries the state machine and
// attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to query
// the state machine. If linearizability is not required, the stale parameter
// can be set to true to use the faster StaleRead function.
//
// If the read operation fails due to a system busy error, the function
// retries up to 5 times. A SchemaMissing error from the state machine is
// re-raised as the fatal *store.SchemaError panic.
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise
		// use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			var serr *store.Error
			if errors.As(err, &serr) {
				if serr.Code == store.RetCSchemaMissing {
					panic(&store.SchemaError{Name: serr.Msg})
				}
				return zero, serr
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		// The state machine is expected to return the response in the
		// expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods - Record Accessor (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(table any, rec db.Record, _ ...store.Options) (db.Record, error) {
	res, err := s.write(internal.Command{
		Type:   internal.CommandTInsert,
		Table:  string(store.ResolveTable(table)),
		Record: rec,
	})
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

func (s *storeImpl) Get(table any, key any, _ ...store.Options) (db.Record, bool, error) {
	res, err := read[internal.RecordResult](s, internal.Query{
		Type:  internal.QueryTGet,
		Table: string(store.ResolveTable(table)),
		Key:   key,
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Record, res.Loaded, nil
}

func (s *storeImpl) Update(table any, key any, patch db.Record, _ ...store.Options) (db.Record, error) {
	res, err := s.write(internal.Command{
		Type:   internal.CommandTUpdate,
		Table:  string(store.ResolveTable(table)),
		Key:    key,
		Record: patch,
	})
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

func (s *storeImpl) Delete(table any, key any, _ ...store.Options) (any, error) {
	res, err := s.write(internal.Command{
		Type:  internal.CommandTDelete,
		Table: string(store.ResolveTable(table)),
		Key:   key,
	})
	if err != nil {
		return nil, err
	}
	return res.Key, nil
}

// --------------------------------------------------------------------------
// Interface Methods - Range & Sequence Accessor (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Select(table any, spec db.MatchSpec, limit int) ([]db.Record, error) {
	return read[[]db.Record](s, internal.Query{
		Type:  internal.QueryTSelect,
		Table: string(store.ResolveTable(table)),
		Spec:  spec,
		Limit: limit,
	}, false)
}

func (s *storeImpl) Count(table any) (int, error) {
	return read[int](s, internal.Query{
		Type:  internal.QueryTCount,
		Table: string(store.ResolveTable(table)),
	}, false)
}

func (s *storeImpl) Attributes(table any) ([]string, error) {
	return read[[]string](s, internal.Query{
		Type:  internal.QueryTAttributes,
		Table: string(store.ResolveTable(table)),
	}, false)
}

func (s *storeImpl) NextID(table any, increment int64) (int64, error) {
	res, err := s.write(internal.Command{
		Type:      internal.CommandTNextID,
		Table:     string(store.ResolveTable(table)),
		Increment: increment,
	})
	if err != nil {
		return 0, err
	}
	return res.ID, nil
}

func (s *storeImpl) First(table any) (any, bool, error) {
	res, err := read[internal.KeyResult](s, internal.Query{
		Type:  internal.QueryTFirst,
		Table: string(store.ResolveTable(table)),
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Key, res.Ok, nil
}

func (s *storeImpl) Next(table any, key any) (any, bool, error) {
	res, err := read[internal.KeyResult](s, internal.Query{
		Type:  internal.QueryTNext,
		Table: string(store.ResolveTable(table)),
		Key:   key,
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Key, res.Ok, nil
}

func (s *storeImpl) Prev(table any, key any) (any, bool, error) {
	res, err := read[internal.KeyResult](s, internal.Query{
		Type:  internal.QueryTPrev,
		Table: string(store.ResolveTable(table)),
		Key:   key,
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Key, res.Ok, nil
}

func (s *storeImpl) Last(table any) (any, bool, error) {
	res, err := read[internal.KeyResult](s, internal.Query{
		Type:  internal.QueryTLast,
		Table: string(store.ResolveTable(table)),
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Key, res.Ok, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}

// CreateTable implements store.ITableProvisioner. The registration is
// proposed into the raft log so every replica provisions the table at the
// same log position.
func (s *storeImpl) CreateTable(table any, attributes []string) error {
	_, err := s.write(internal.Command{
		Type:       internal.CommandTCreateTable,
		Table:      string(store.ResolveTable(table)),
		Attributes: attributes,
	})
	return err
}
