package rowan

import (
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"
	"runtime/debug"
	"sort"
	"time"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/db/engines/rowan/internal"
	"github.com/ValentinKolb/dTable/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum            = "ROWANDB\x00"          // Snapshot format identifier
	rowanVersion        = 1                      // Database version
	defaultBTreeDegree  = 32                     // Default B-tree degree per table
	defaultMaxRetries   = 64                     // Default transaction restarts before giving up
	defaultRetryBackoff = 100 * time.Microsecond // Default base backoff between restarts
)

// supportedFeatures lists everything rowan implements.
const supportedFeatures = db.FeatureTransaction | db.FeatureDirty | db.FeatureMatch |
	db.FeatureCounter | db.FeatureTraverse | db.FeatureSchema | db.FeatureSave | db.FeatureLoad

// --------------------------------------------------------------------------
// Core Rowan database structure
// --------------------------------------------------------------------------

// rowanImpl implements an ordered table engine with one B-tree per table.
// Transactions acquire per-table locks optimistically (TryLock) and restart
// the whole activity on conflict, which is why activities must be pure.
type rowanImpl struct {
	tables   *xsync.MapOf[string, *internal.Table] // Registered tables by name
	counters *xsync.MapOf[string, int64]           // Per-table sequence counters

	degree     int           // B-tree degree for new tables
	maxRetries int           // Transaction restarts before aborting
	backoff    time.Duration // Base backoff between restarts
}

// DBOptions configures the rowanImpl behavior during initialization
type DBOptions struct {
	BTreeDegree  int           // Degree of the per-table B-trees (0 = default)
	MaxRetries   int           // Transaction restarts before aborting (0 = default)
	RetryBackoff time.Duration // Base backoff between restarts (0 = default)
}

// DefaultOptions returns the default rowanImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		BTreeDegree:  defaultBTreeDegree,
		MaxRetries:   defaultMaxRetries,
		RetryBackoff: defaultRetryBackoff,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewRowanDB creates a new RowanDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewRowanDB(opts *DBOptions) db.TableDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.BTreeDegree <= 1 {
		opts.BTreeDegree = defaultBTreeDegree
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}

	return &rowanImpl{
		tables:     xsync.NewMapOf[string, *internal.Table](),
		counters:   xsync.NewMapOf[string, int64](),
		degree:     opts.BTreeDegree,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
	}
}

// --------------------------------------------------------------------------
// Schema Operations
// --------------------------------------------------------------------------

// CreateTable registers a table. Creating an existing table is a no-op.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) CreateTable(table string, attributes []string) error {
	r.tables.LoadOrCompute(table, func() *internal.Table {
		return internal.NewTable(table, attributes, r.degree)
	})
	return nil
}

// Attributes returns a table's declared attribute names, or exists=false for
// an unregistered table. This is the one schema lookup that reports absence
// as a value instead of a fault.
func (r *rowanImpl) Attributes(table string) ([]string, bool) {
	t, ok := r.tables.Load(table)
	if !ok {
		return nil, false
	}
	attrs := make([]string, len(t.Attributes))
	copy(attrs, t.Attributes)
	return attrs, true
}

// mustTable returns the registered table or panics with the engine's
// missing-schema abort condition.
func (r *rowanImpl) mustTable(table string) *internal.Table {
	t, ok := r.tables.Load(table)
	if !ok {
		panic(&db.AbortError{Reason: &db.NoExistsError{Table: table}})
	}
	return t
}

// --------------------------------------------------------------------------
// Transaction Machinery
// --------------------------------------------------------------------------

// conflictSignal is panicked by a transaction when it loses a lock race.
// It never escapes Run: the activity is restarted with fresh locks.
type conflictSignal struct {
	table string
}

// bufOp is one buffered write of a transaction, applied on commit.
type bufOp struct {
	key   any
	rec   db.Record
	erase bool
}

// heldLock tracks one table lock held by a transaction.
type heldLock struct {
	t     *internal.Table
	write bool
}

// txn implements db.Tx. In transactional mode all locks are held until
// commit/rollback and writes are buffered; in dirty mode each primitive
// locks only for its own duration and writes apply immediately.
type txn struct {
	eng   *rowanImpl
	dirty bool

	held      map[string]*heldLock
	wantWrite map[string]bool         // lock modes learned across restarts
	writes    map[string]map[string]bufOp // table -> canonical key -> op
	order     []string                // lock acquisition order (for release)
}

func (r *rowanImpl) newTxn(dirty bool, wantWrite map[string]bool) *txn {
	return &txn{
		eng:       r,
		dirty:     dirty,
		held:      make(map[string]*heldLock),
		wantWrite: wantWrite,
		writes:    make(map[string]map[string]bufOp),
	}
}

// acquire takes (or upgrades knowledge about) the lock for a table. A failed
// TryLock records the desired mode and signals a conflict so the activity is
// restarted rather than deadlocking.
func (tx *txn) acquire(table string, write bool) *internal.Table {
	t := tx.eng.mustTable(table)

	want := write || tx.wantWrite[table]
	if held, ok := tx.held[table]; ok {
		if held.write || !want {
			return t
		}
		// Read lock held but a write lock is needed now: restart in write mode.
		tx.wantWrite[table] = true
		panic(conflictSignal{table: table})
	}

	var ok bool
	if want {
		ok = t.Mu.TryLock()
	} else {
		ok = t.Mu.TryRLock()
	}
	if !ok {
		if write {
			tx.wantWrite[table] = true
		}
		panic(conflictSignal{table: table})
	}

	tx.held[table] = &heldLock{t: t, write: want}
	tx.order = append(tx.order, table)
	return t
}

// releaseAll drops every held lock. Safe to call more than once.
func (tx *txn) releaseAll() {
	for _, name := range tx.order {
		held := tx.held[name]
		if held.write {
			held.t.Mu.Unlock()
		} else {
			held.t.Mu.RUnlock()
		}
		delete(tx.held, name)
	}
	tx.order = tx.order[:0]
}

// commit applies all buffered writes. Caller still holds the write locks.
func (tx *txn) commit() {
	for name, ops := range tx.writes {
		t := tx.held[name].t
		for _, op := range ops {
			if op.erase {
				t.Delete(op.key)
			} else {
				t.Put(op.key, op.rec)
			}
		}
	}
}

// overlay returns the buffered op for a key, if any.
func (tx *txn) overlay(table string, key any) (bufOp, bool) {
	ops, ok := tx.writes[table]
	if !ok {
		return bufOp{}, false
	}
	op, ok := ops[util.KeyString(key)]
	return op, ok
}

func (tx *txn) buffer(table string, op bufOp) {
	ops, ok := tx.writes[table]
	if !ok {
		ops = make(map[string]bufOp)
		tx.writes[table] = ops
	}
	ops[util.KeyString(op.key)] = op
}

// --------------------------------------------------------------------------
// Tx Interface Methods (docu see db.Tx)
// --------------------------------------------------------------------------

func (tx *txn) Read(table string, key any) (db.Record, bool) {
	return tx.read(table, key, false)
}

func (tx *txn) ReadForWrite(table string, key any) (db.Record, bool) {
	return tx.read(table, key, true)
}

func (tx *txn) read(table string, key any, forWrite bool) (db.Record, bool) {
	if tx.dirty {
		t := tx.eng.mustTable(table)
		t.Mu.RLock()
		defer t.Mu.RUnlock()
		rec, ok := t.Get(key)
		return rec.Clone(), ok
	}

	t := tx.acquire(table, forWrite)
	if op, ok := tx.overlay(table, key); ok {
		if op.erase {
			return nil, false
		}
		return op.rec.Clone(), true
	}
	rec, ok := t.Get(key)
	return rec.Clone(), ok
}

func (tx *txn) Write(table string, rec db.Record) {
	key, ok := rec.Key()
	if !ok {
		panic(&db.AbortError{Reason: fmt.Errorf("record for table %q carries no primary key", table)})
	}

	if tx.dirty {
		t := tx.eng.mustTable(table)
		t.Mu.Lock()
		defer t.Mu.Unlock()
		t.Put(key, rec.Clone())
		return
	}

	tx.acquire(table, true)
	tx.buffer(table, bufOp{key: key, rec: rec.Clone()})
}

func (tx *txn) Erase(table string, key any) {
	if tx.dirty {
		t := tx.eng.mustTable(table)
		t.Mu.Lock()
		defer t.Mu.Unlock()
		t.Delete(key)
		return
	}

	tx.acquire(table, true)
	tx.buffer(table, bufOp{key: key, erase: true})
}

func (tx *txn) Match(table string, spec db.MatchSpec, limit int) []db.Record {
	var t *internal.Table
	if tx.dirty {
		t = tx.eng.mustTable(table)
		t.Mu.RLock()
		defer t.Mu.RUnlock()
	} else {
		t = tx.acquire(table, false)
	}

	ops := tx.writes[table]
	var out []db.Record

	t.Ascend(func(key any, rec db.Record) bool {
		if ops != nil {
			if op, ok := ops[util.KeyString(key)]; ok {
				if op.erase {
					return true
				}
				rec = op.rec
			}
		}
		if spec(rec) {
			out = append(out, rec.Clone())
			// Early exit is only safe without buffered writes, which could
			// still sort into the collected range.
			if limit > 0 && len(out) >= limit && len(ops) == 0 {
				return false
			}
		}
		return true
	})

	// Buffered inserts for keys not yet in the tree
	for _, op := range ops {
		if op.erase {
			continue
		}
		if _, exists := t.Get(op.key); exists {
			continue
		}
		if spec(op.rec) {
			out = append(out, op.rec.Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ki, _ := out[i].Key()
		kj, _ := out[j].Key()
		return util.CompareKeys(ki, kj) < 0
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --------------------------------------------------------------------------
// Core TableDB Interface Methods - Run
// --------------------------------------------------------------------------

// Run executes the activity under the requested access context (docu see db.TableDB).
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) Run(actx db.AccessContext, act db.Activity) (interface{}, error) {
	if actx == db.CtxDirty {
		return r.runDirty(act)
	}

	// Lock modes survive restarts, so an upgraded table is locked for
	// writing right away on the next attempt.
	wantWrite := make(map[string]bool)

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		res, err, conflict := r.runOnce(act, wantWrite)
		if !conflict {
			return res, err
		}
		// Jittered, linearly growing backoff keeps conflicting transactions
		// from restarting in lockstep and from starving each other.
		wait := r.backoff * time.Duration(attempt+1)
		time.Sleep(wait + time.Duration(rand.Int63n(int64(r.backoff))))
	}

	return nil, &db.AbortError{Reason: fmt.Errorf("lock conflict persisted after %d restarts", r.maxRetries)}
}

// runOnce executes the activity a single time. The conflict return value
// requests a restart by the caller; it is never combined with a result.
func (r *rowanImpl) runOnce(act db.Activity, wantWrite map[string]bool) (res interface{}, err error, conflict bool) {
	tx := r.newTxn(false, wantWrite)
	defer tx.releaseAll()
	defer func() {
		if p := recover(); p != nil {
			res = nil
			switch v := p.(type) {
			case conflictSignal:
				conflict = true
			case *db.AbortError:
				err = v
			default:
				err = &db.ExitError{Reason: p, Stack: debug.Stack()}
			}
		}
	}()

	val, actErr := act(tx)
	if actErr != nil {
		return nil, &db.AbortError{Reason: actErr}, false
	}

	tx.commit()
	return val, nil, false
}

// runDirty executes the activity once without transaction-scoped locking.
// Writes apply immediately; an activity error rolls nothing back.
func (r *rowanImpl) runDirty(act db.Activity) (res interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			switch v := p.(type) {
			case *db.AbortError:
				err = v
			default:
				err = &db.ExitError{Reason: p, Stack: debug.Stack()}
			}
		}
	}()

	val, actErr := act(r.newTxn(true, nil))
	if actErr != nil {
		return nil, &db.AbortError{Reason: actErr}
	}
	return val, nil
}

// --------------------------------------------------------------------------
// Core TableDB Interface Methods - Dirty Operations
// --------------------------------------------------------------------------

// Size returns the number of records in the table (docu see db.TableDB).
func (r *rowanImpl) Size(table string) int {
	t := r.mustTable(table)
	t.Mu.RLock()
	defer t.Mu.RUnlock()
	return t.Tree.Len()
}

// UpdateCounter atomically adds delta to the table's counter (docu see db.TableDB).
//
// Thread-safety: This method is thread-safe since the computation runs under
// the counter map's internal bucket lock.
func (r *rowanImpl) UpdateCounter(table string, delta int64) int64 {
	r.mustTable(table)
	val, _ := r.counters.Compute(table, func(old int64, _ bool) (int64, bool) {
		return old + delta, false
	})
	return val
}

func (r *rowanImpl) First(table string) (any, bool) {
	t := r.mustTable(table)
	t.Mu.RLock()
	defer t.Mu.RUnlock()
	return t.First()
}

func (r *rowanImpl) Next(table string, key any) (any, bool) {
	t := r.mustTable(table)
	t.Mu.RLock()
	defer t.Mu.RUnlock()
	return t.Next(key)
}

func (r *rowanImpl) Prev(table string, key any) (any, bool) {
	t := r.mustTable(table)
	t.Mu.RLock()
	defer t.Mu.RUnlock()
	return t.Prev(key)
}

func (r *rowanImpl) Last(table string) (any, bool) {
	t := r.mustTable(table)
	t.Mu.RLock()
	defer t.Mu.RUnlock()
	return t.Last()
}

// --------------------------------------------------------------------------
// Core TableDB Interface Methods - Persistence
// --------------------------------------------------------------------------

// savedTable is one table in the snapshot stream.
type savedTable struct {
	Name       string
	Attributes []string
	Records    []db.Record
}

// savedState is the complete snapshot payload.
type savedState struct {
	Magic    string
	Version  int
	Tables   []savedTable
	Counters map[string]int64
}

// Save persists the full engine state (docu see db.TableDB). Tables are
// locked one at a time, so the snapshot is fuzzy across tables but
// consistent within each.
func (r *rowanImpl) Save(w io.Writer) error {
	state := savedState{
		Magic:    magicNum,
		Version:  rowanVersion,
		Counters: make(map[string]int64),
	}

	r.tables.Range(func(name string, t *internal.Table) bool {
		t.Mu.RLock()
		st := savedTable{Name: name, Attributes: append([]string(nil), t.Attributes...)}
		t.Ascend(func(_ any, rec db.Record) bool {
			st.Records = append(st.Records, rec.Clone())
			return true
		})
		t.Mu.RUnlock()
		state.Tables = append(state.Tables, st)
		return true
	})

	r.counters.Range(func(name string, val int64) bool {
		state.Counters[name] = val
		return true
	})

	return gob.NewEncoder(w).Encode(state)
}

// Load replaces the full engine state with a snapshot (docu see db.TableDB).
//
// Thread-safety: Load must not run concurrently with other operations.
func (r *rowanImpl) Load(rd io.Reader) error {
	var state savedState
	if err := gob.NewDecoder(rd).Decode(&state); err != nil {
		return err
	}
	if state.Magic != magicNum {
		return fmt.Errorf("not a rowan snapshot")
	}
	if state.Version != rowanVersion {
		return fmt.Errorf("unsupported rowan snapshot version %d", state.Version)
	}

	tables := xsync.NewMapOf[string, *internal.Table]()
	for _, st := range state.Tables {
		t := internal.NewTable(st.Name, st.Attributes, r.degree)
		for _, rec := range st.Records {
			if key, ok := rec.Key(); ok {
				t.Put(key, rec)
			}
		}
		tables.Store(st.Name, t)
	}

	counters := xsync.NewMapOf[string, int64]()
	for name, val := range state.Counters {
		counters.Store(name, val)
	}

	r.tables = tables
	r.counters = counters
	return nil
}

// --------------------------------------------------------------------------
// Core TableDB Interface Methods - Feature Support
// --------------------------------------------------------------------------

func (r *rowanImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (r *rowanImpl) GetInfo() db.DatabaseInfo {
	var (
		numTables  int
		numRecords int
	)
	r.tables.Range(func(_ string, t *internal.Table) bool {
		numTables++
		t.Mu.RLock()
		numRecords += t.Tree.Len()
		t.Mu.RUnlock()
		return true
	})

	features := make([]db.Feature, 0, 8)
	for f := db.FeatureTransaction; f <= db.FeatureLoad; f <<= 1 {
		if r.SupportsFeature(f) {
			features = append(features, f)
		}
	}

	return db.DatabaseInfo{
		NumTables:         numTables,
		NumRecords:        numRecords,
		DbType:            db.ImplRowan,
		SupportedFeatures: features,
		Metadata: map[string]interface{}{
			"btree_degree": r.degree,
			"max_retries":  r.maxRetries,
		},
	}
}

func (r *rowanImpl) Close() error {
	return nil
}
