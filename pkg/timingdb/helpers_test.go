package timingdb

import (
	"github.com/ethpandaops/timingtree/pkg/logtable"
	"github.com/ethpandaops/timingtree/pkg/logtable/logtabletest"
)

func sample(finish, revision string, tables ...[]logtabletest.Region) *Database {
	ts := make([]*logtable.Table, len(tables))
	entries := make([]int, len(tables))

	for i, regions := range tables {
		ts[i] = logtabletest.Table(regions)
		entries[i] = len(regions)
	}

	return New(ts, &logtable.RunMeta{
		StartTime:  "2023-01-10 12:00:05",
		FinishTime: finish,
		Revision:   revision,
		Branch:     "main",
		NTables:    len(tables),
		Entries:    entries,
	})
}

func scaled(regions []logtabletest.Region, factor float64) []logtabletest.Region {
	out := make([]logtabletest.Region, len(regions))
	for i, r := range regions {
		r.Total *= factor
		out[i] = r
	}

	return out
}
