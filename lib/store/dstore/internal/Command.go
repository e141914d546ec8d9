package internal

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ValentinKolb/dTable/lib/db"
)

// CommandType defines the possible mutating operations for the state machine.
type CommandType uint8

const (
	CommandTInsert      CommandType = iota // Insert a record under its primary key.
	CommandTUpdate                         // Merge a patch into a stored record.
	CommandTDelete                         // Delete a record by key.
	CommandTNextID                         // Advance a table's sequence counter.
	CommandTCreateTable                    // Register a table and its attributes.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTInsert:
		return "Insert"
	case CommandTUpdate:
		return "Update"
	case CommandTDelete:
		return "Delete"
	case CommandTNextID:
		return "NextID"
	case CommandTCreateTable:
		return "CreateTable"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the engine supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTInsert, CommandTUpdate, CommandTDelete:
		return db.FeatureTransaction, nil
	case CommandTNextID:
		return db.FeatureCounter, nil
	case CommandTCreateTable:
		return db.FeatureSchema, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a mutating operation to be executed by the state machine
// (a single entry in the raft log). Keys and record fields are dynamically
// typed, so the wire format is gob rather than a fixed binary layout; the db
// package registers the permitted concrete field types with gob.
type Command struct {
	Type       CommandType
	Table      string
	Key        any       // set for Update and Delete
	Record     db.Record // full record for Insert, patch for Update
	Attributes []string  // set for CreateTable
	Increment  int64     // set for NextID
}

// Serialize encodes the command for the raft log.
func (command *Command) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(command); err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize extracts all Command fields from a log entry.
func (command *Command) Deserialize(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("data too short for command")
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(command); err != nil {
		return fmt.Errorf("failed to decode command: %w", err)
	}
	return nil
}

// CommandResult is the success payload a command produces on the state
// machine. Only the field matching the command type is set: Record for
// Insert/Update, Key for Delete, ID for NextID, nothing for CreateTable.
type CommandResult struct {
	Record db.Record
	Key    any
	ID     int64
}

// Serialize encodes the result for transport in the raft entry result.
func (res *CommandResult) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(res); err != nil {
		return nil, fmt.Errorf("failed to encode command result: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize extracts all CommandResult fields from a result payload.
func (res *CommandResult) Deserialize(data []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(res); err != nil {
		return fmt.Errorf("failed to decode command result: %w", err)
	}
	return nil
}
