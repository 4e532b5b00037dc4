// Package timingdb aggregates the region trees and frames of all timer
// tables of a model log, persists them and merges new samples into a
// multi-sample history.
package timingdb

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/timingtree/pkg/frame"
	"github.com/ethpandaops/timingtree/pkg/logtable"
	"github.com/ethpandaops/timingtree/pkg/timing"
)

var (
	// ErrNotFound is returned by Load when no database exists at the base
	// path.
	ErrNotFound = errors.New("timing database not found")

	// ErrTableCountMismatch is returned when two databases hold a
	// different number of tables.
	ErrTableCountMismatch = errors.New("table count mismatch")

	// ErrMetaKeyMismatch is returned when two databases carry different
	// metadata keys.
	ErrMetaKeyMismatch = errors.New("metadata key mismatch")

	// ErrTableIndex is returned for a table index outside the database.
	ErrTableIndex = errors.New("table index out of range")

	// ErrUnknownColumn is returned for a column the table does not have.
	ErrUnknownColumn = errors.New("unknown column")
)

// Database holds one region tree and one frame per table.
type Database struct {
	Roots []*timing.Node
	Data  []*frame.Frame
	Meta  *Meta
}

// New builds a single-sample database. The sample is keyed by the run's
// finish time.
func New(tables []*logtable.Table, rm *logtable.RunMeta) *Database {
	db := &Database{
		Roots: make([]*timing.Node, len(tables)),
		Data:  make([]*frame.Frame, len(tables)),
		Meta:  NewMeta(rm),
	}

	for i, t := range tables {
		db.Roots[i], db.Data[i] = timing.Build(t, rm.FinishTime)
	}

	return db
}

// FromLog extracts the log at path and builds a single-sample database.
func FromLog(ext *logtable.Extractor, path string) (*Database, error) {
	tables, rm, err := ext.ExtractFile(path)
	if err != nil {
		return nil, err
	}

	return New(tables, rm), nil
}

// NTables returns the number of tables.
func (d *Database) NTables() int {
	return d.Meta.NTables
}

// NSamples returns the number of merged samples.
func (d *Database) NSamples() int {
	return d.Meta.NSamples()
}

// Samples returns the metadata of every merged sample in merge order.
func (d *Database) Samples() []Sample {
	return d.Meta.Samples()
}

// HasSample reports whether a sample with the given finish time and
// revision has been merged.
func (d *Database) HasSample(finishTime, revision string) bool {
	for _, s := range d.Samples() {
		if s.FinishTime == finishTime && s.Revision == revision {
			return true
		}
	}

	return false
}

// FindNode returns the first region named name in the given table, or nil
// if there is none or the table does not exist.
func (d *Database) FindNode(name string, table int) *timing.Node {
	if table < 0 || table >= len(d.Roots) {
		return nil
	}

	return d.Roots[table].FindByName(name)
}

// Table returns the tree and frame of one table.
func (d *Database) Table(table int) (*timing.Node, *frame.Frame, error) {
	if table < 0 || table >= len(d.Roots) || table >= len(d.Data) {
		return nil, nil, fmt.Errorf("table %d of %d: %w", table, len(d.Roots), ErrTableIndex)
	}

	return d.Roots[table], d.Data[table], nil
}
