package db

import "encoding/gob"

// Records travel inside interface-typed fields (engine snapshots, raft log
// commands), so every concrete field type must be known to gob up front.
func init() {
	gob.Register(Record{})
	gob.Register(noValue{})
	gob.Register([]byte(nil))
	gob.Register(int(0))
	gob.Register(int8(0))
	gob.Register(int16(0))
	gob.Register(int32(0))
	gob.Register(int64(0))
	gob.Register(uint(0))
	gob.Register(uint8(0))
	gob.Register(uint16(0))
	gob.Register(uint32(0))
	gob.Register(uint64(0))
	gob.Register(float32(0))
	gob.Register(float64(0))
}
