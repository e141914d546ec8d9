package internal

import (
	"sync"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/db/util"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Item Type (one record in a table's tree)
// --------------------------------------------------------------------------

// Item wraps a record for storage in a table's B-tree, sorted by primary key
// according to util.CompareKeys.
type Item struct {
	Key any
	Rec db.Record
}

func (i *Item) Less(than btree.Item) bool {
	return util.CompareKeys(i.Key, than.(*Item).Key) < 0
}

// --------------------------------------------------------------------------
// Table Type (one registered table)
// --------------------------------------------------------------------------

// Table holds one table's schema and records. The mutex guards the tree;
// transactions hold it for their full duration, dirty operations only per
// primitive.
type Table struct {
	Name       string
	Attributes []string

	Mu   sync.RWMutex
	Tree *btree.BTree
}

// NewTable creates an empty table with the given schema.
func NewTable(name string, attributes []string, degree int) *Table {
	attrs := make([]string, len(attributes))
	copy(attrs, attributes)
	return &Table{
		Name:       name,
		Attributes: attrs,
		Tree:       btree.New(degree),
	}
}

// --------------------------------------------------------------------------
// Tree Accessors (caller must hold the appropriate lock)
// --------------------------------------------------------------------------

// Get returns the record stored under key.
func (t *Table) Get(key any) (db.Record, bool) {
	if it := t.Tree.Get(&Item{Key: key}); it != nil {
		return it.(*Item).Rec, true
	}
	return nil, false
}

// Put stores rec under key, replacing any previous record.
func (t *Table) Put(key any, rec db.Record) {
	t.Tree.ReplaceOrInsert(&Item{Key: key, Rec: rec})
}

// Delete removes the record stored under key, if any.
func (t *Table) Delete(key any) {
	t.Tree.Delete(&Item{Key: key})
}

// First returns the smallest key of the table.
func (t *Table) First() (any, bool) {
	if it := t.Tree.Min(); it != nil {
		return it.(*Item).Key, true
	}
	return nil, false
}

// Last returns the largest key of the table.
func (t *Table) Last() (any, bool) {
	if it := t.Tree.Max(); it != nil {
		return it.(*Item).Key, true
	}
	return nil, false
}

// Next returns the smallest key strictly greater than key.
func (t *Table) Next(key any) (any, bool) {
	var next any
	found := false
	t.Tree.AscendGreaterOrEqual(&Item{Key: key}, func(it btree.Item) bool {
		k := it.(*Item).Key
		if util.CompareKeys(k, key) <= 0 {
			return true // skip the pivot itself
		}
		next, found = k, true
		return false
	})
	return next, found
}

// Prev returns the largest key strictly smaller than key.
func (t *Table) Prev(key any) (any, bool) {
	var prev any
	found := false
	t.Tree.DescendLessOrEqual(&Item{Key: key}, func(it btree.Item) bool {
		k := it.(*Item).Key
		if util.CompareKeys(k, key) >= 0 {
			return true
		}
		prev, found = k, true
		return false
	})
	return prev, found
}

// Ascend visits all records in key order until fn returns false.
func (t *Table) Ascend(fn func(key any, rec db.Record) bool) {
	t.Tree.Ascend(func(it btree.Item) bool {
		item := it.(*Item)
		return fn(item.Key, item.Rec)
	})
}
