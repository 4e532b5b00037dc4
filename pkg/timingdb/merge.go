package timingdb

import (
	"fmt"

	"github.com/ethpandaops/timingtree/pkg/frame"
	"github.com/ethpandaops/timingtree/pkg/timing"
)

// MergePolicy decides what happens to the region trees on Add.
type MergePolicy string

const (
	// MergeGrow keeps the stored trees and adds regions that only the
	// incoming sample has.
	MergeGrow MergePolicy = "grow"

	// MergeReplace replaces the stored trees with the incoming ones.
	MergeReplace MergePolicy = "replace"
)

// ParseMergePolicy converts a configured policy name.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(s); p {
	case MergeGrow, MergeReplace:
		return p, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", s)
	}
}

// Add merges other into d. All compatibility checks run before d is
// touched, so on error d is unchanged.
func (d *Database) Add(other *Database, policy MergePolicy) error {
	if d.Meta.NTables != other.Meta.NTables {
		return fmt.Errorf("merging %d tables into %d: %w",
			other.Meta.NTables, d.Meta.NTables, ErrTableCountMismatch)
	}

	if len(d.Roots) != d.Meta.NTables || len(other.Roots) != other.Meta.NTables ||
		len(d.Data) != len(d.Roots) || len(other.Data) != len(other.Roots) {
		return fmt.Errorf("database holds %d trees and %d frames for %d tables: %w",
			len(d.Roots), len(d.Data), d.Meta.NTables, ErrTableCountMismatch)
	}

	if !d.Meta.SameKeys(other.Meta) {
		return fmt.Errorf("merging keys %v into %v: %w",
			other.Meta.Keys(), d.Meta.Keys(), ErrMetaKeyMismatch)
	}

	roots, err := d.mergedRoots(other, policy)
	if err != nil {
		return err
	}

	for i, f := range d.Data {
		f.Merge(other.Data[i])
	}

	for k, v := range other.Meta.Fields {
		d.Meta.Fields[k] = append(d.Meta.Fields[k], v...)
	}

	d.Meta.Entries = append([]int(nil), other.Meta.Entries...)
	d.Roots = roots

	return nil
}

func (d *Database) mergedRoots(other *Database, policy MergePolicy) ([]*timing.Node, error) {
	switch policy {
	case MergeReplace:
		return other.Roots, nil
	case MergeGrow, "":
	default:
		return nil, fmt.Errorf("unknown merge policy %q", policy)
	}

	roots := make([]*timing.Node, len(d.Roots))

	for i, root := range d.Roots {
		diff := other.Roots[i].Difference(root)
		if diff.Len() == 0 {
			roots[i] = root

			continue
		}

		grown := root.Clone()
		if _, err := grown.Grow(diff); err != nil {
			return nil, fmt.Errorf("growing table %d: %w", i, err)
		}

		roots[i] = grown
	}

	return roots, nil
}

// Divergence returns the indices of tables whose stored tree is not fully
// present in other. Those are the tables whose structure changes when
// other is merged with MergeReplace, and whose history loses regions.
func (d *Database) Divergence(other *Database) []int {
	var out []int

	for i, root := range d.Roots {
		if i >= len(other.Roots) {
			break
		}

		if root.Intersection(other.Roots[i]).Len() != len(root.Descendants()) {
			out = append(out, i)
		}
	}

	return out
}

// Clone returns a deep copy of the database.
func (d *Database) Clone() *Database {
	out := &Database{
		Roots: make([]*timing.Node, len(d.Roots)),
		Data:  make([]*frame.Frame, len(d.Data)),
		Meta:  d.Meta.Clone(),
	}

	for i, r := range d.Roots {
		out.Roots[i] = r.Clone()
	}

	for i, f := range d.Data {
		out.Data[i] = f.Clone()
	}

	return out
}
