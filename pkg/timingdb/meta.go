package timingdb

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethpandaops/timingtree/pkg/logtable"
)

// Per-sample metadata keys.
const (
	KeyStartTime  = "start_time"
	KeyFinishTime = "finish_time"
	KeyRevision   = "revision"
	KeyBranch     = "branch"

	keyNTables = "n_tables"
	keyEntries = "entries"
)

// Meta is the metadata of a database. Every per-sample field is a list
// with one entry per merged sample, a single sample being a list of length
// one. NTables is shared by all samples and Entries describes the most
// recent parse.
type Meta struct {
	Fields  map[string][]string
	NTables int
	Entries []int
}

// NewMeta converts the metadata of one parsed log.
func NewMeta(rm *logtable.RunMeta) *Meta {
	return &Meta{
		Fields: map[string][]string{
			KeyStartTime:  {rm.StartTime},
			KeyFinishTime: {rm.FinishTime},
			KeyRevision:   {rm.Revision},
			KeyBranch:     {rm.Branch},
		},
		NTables: rm.NTables,
		Entries: append([]int(nil), rm.Entries...),
	}
}

// Values returns the per-sample values of key in merge order.
func (m *Meta) Values(key string) []string {
	return append([]string(nil), m.Fields[key]...)
}

// Latest returns the value of key for the most recent sample, or "" if
// the key is absent.
func (m *Meta) Latest(key string) string {
	v := m.Fields[key]
	if len(v) == 0 {
		return ""
	}

	return v[len(v)-1]
}

// Keys returns the per-sample field keys sorted.
func (m *Meta) Keys() []string {
	out := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// NSamples returns the number of merged samples.
func (m *Meta) NSamples() int {
	return len(m.Fields[KeyFinishTime])
}

// SameKeys reports whether both metas have the same per-sample keys.
func (m *Meta) SameKeys(other *Meta) bool {
	if len(m.Fields) != len(other.Fields) {
		return false
	}

	for k := range m.Fields {
		if _, ok := other.Fields[k]; !ok {
			return false
		}
	}

	return true
}

// Clone returns a deep copy.
func (m *Meta) Clone() *Meta {
	out := &Meta{
		Fields:  make(map[string][]string, len(m.Fields)),
		NTables: m.NTables,
		Entries: append([]int(nil), m.Entries...),
	}

	for k, v := range m.Fields {
		out.Fields[k] = append([]string(nil), v...)
	}

	return out
}

// MarshalJSON writes per-sample fields as lists next to n_tables and
// entries.
func (m *Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Fields)+2)
	for k, v := range m.Fields {
		if v == nil {
			v = []string{}
		}

		out[k] = v
	}

	entries := m.Entries
	if entries == nil {
		entries = []int{}
	}

	out[keyNTables] = m.NTables
	out[keyEntries] = entries

	return json.Marshal(out)
}

// UnmarshalJSON accepts per-sample fields either as lists or, as written
// for single-sample stores by older tools, as bare strings.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Fields = make(map[string][]string, len(raw))
	m.NTables = 0
	m.Entries = nil

	for k, v := range raw {
		switch k {
		case keyNTables:
			if err := json.Unmarshal(v, &m.NTables); err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}
		case keyEntries:
			if err := json.Unmarshal(v, &m.Entries); err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}
		default:
			values, err := decodeStrings(v)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}

			m.Fields[k] = values
		}
	}

	return nil
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("want string or list of strings: %w", err)
	}

	return []string{single}, nil
}

// Sample is the metadata of one merged sample.
type Sample struct {
	Index      int    `json:"index"`
	StartTime  string `json:"start_time"`
	FinishTime string `json:"finish_time"`
	Revision   string `json:"revision"`
	Branch     string `json:"branch"`
}

// Samples returns the per-sample metadata in merge order.
func (m *Meta) Samples() []Sample {
	n := m.NSamples()

	at := func(key string, i int) string {
		v := m.Fields[key]
		if i < len(v) {
			return v[i]
		}

		return ""
	}

	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{
			Index:      i,
			StartTime:  at(KeyStartTime, i),
			FinishTime: at(KeyFinishTime, i),
			Revision:   at(KeyRevision, i),
			Branch:     at(KeyBranch, i),
		}
	}

	return out
}
