package indexstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/ethpandaops/timingtree/pkg/timing"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
	"github.com/sirupsen/logrus"
)

// Sync indexes every sample of db that the store does not know yet under
// the store name storeName. It returns the number of newly indexed
// samples. Values that are not available (NaN) are not indexed.
func Sync(
	ctx context.Context,
	log logrus.FieldLogger,
	s Store,
	storeName string,
	db *timingdb.Database,
) (int, error) {
	log = log.WithField("store", storeName)

	entries, err := json.Marshal(db.Meta.Entries)
	if err != nil {
		return 0, fmt.Errorf("encoding entries: %w", err)
	}

	indexed := 0

	for _, sample := range db.Samples() {
		known, err := s.HasSample(ctx, storeName, sample.FinishTime, sample.Revision)
		if err != nil {
			return indexed, err
		}

		if known {
			continue
		}

		values := TimerValues(storeName, db, sample)

		if err := s.DeleteTimerValuesForSample(
			ctx, storeName, sample.FinishTime, sample.Revision,
		); err != nil {
			return indexed, err
		}

		if err := s.BulkInsertTimerValues(ctx, values); err != nil {
			return indexed, err
		}

		if err := s.UpsertSample(ctx, &Sample{
			Store:       storeName,
			FinishTime:  sample.FinishTime,
			Revision:    sample.Revision,
			StartTime:   sample.StartTime,
			Branch:      sample.Branch,
			NTables:     db.NTables(),
			EntriesJSON: string(entries),
			IndexedAt:   time.Now().UTC(),
		}); err != nil {
			return indexed, err
		}

		log.WithFields(logrus.Fields{
			"finish_time": sample.FinishTime,
			"revision":    sample.Revision,
			"values":      len(values),
		}).Debug("Indexed sample")

		indexed++
	}

	if indexed > 0 {
		log.WithField("count", indexed).Info("Index sync complete")
	}

	return indexed, nil
}

// TimerValues flattens the frame rows of one sample into timer values.
// Path is left empty for names that occur more than once in a table,
// since frame rows carry only the bare name.
func TimerValues(storeName string, db *timingdb.Database, sample timingdb.Sample) []*TimerValue {
	var out []*TimerValue

	for table, data := range db.Data {
		columns := data.Columns()

		var paths map[string]string
		if table < len(db.Roots) {
			paths = uniquePaths(db.Roots[table])
		}

		for i := 0; i < data.Len(); i++ {
			key := data.Key(i)
			if key.Timestamp != sample.FinishTime {
				continue
			}

			path := paths[key.Name]

			for c, v := range data.Row(i) {
				if math.IsNaN(v) {
					continue
				}

				out = append(out, &TimerValue{
					Store:      storeName,
					TableIndex: table,
					Name:       key.Name,
					ColumnName: columns[c],
					Path:       path,
					FinishTime: sample.FinishTime,
					Revision:   sample.Revision,
					Value:      v,
				})
			}
		}
	}

	return out
}

// uniquePaths maps every region name that occurs once below root to its
// path. Repeated names map to "".
func uniquePaths(root *timing.Node) map[string]string {
	paths := make(map[string]string)

	root.Walk(func(n *timing.Node) bool {
		if _, seen := paths[n.Name]; seen {
			paths[n.Name] = ""
		} else {
			paths[n.Name] = n.Path()
		}

		return true
	})

	return paths
}
