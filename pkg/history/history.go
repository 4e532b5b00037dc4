// Package history appends parsed model logs to a persisted timing
// database.
package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/juju/fslock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/fsutil"
	"github.com/ethpandaops/timingtree/pkg/indexstore"
	"github.com/ethpandaops/timingtree/pkg/logtable"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

// ErrLocked is returned when another process holds the store lock.
var ErrLocked = errors.New("timing database is locked by another process")

// backupStampLayout names backup files after the time they were taken.
const backupStampLayout = "20060102T150405"

// Result summarizes one append.
type Result struct {
	Added   int
	Skipped int
	// Backups are the artifact copies taken before structural changes.
	Backups []string
	// Diverged lists the tables whose stored tree was not fully present
	// in at least one merged sample.
	Diverged []int
}

// Option configures an Appender.
type Option func(*Appender)

// WithIndex keeps an index store in sync after every append.
func WithIndex(store indexstore.Store, name string) Option {
	return func(a *Appender) {
		a.index = store
		a.indexName = name
	}
}

// WithClock overrides the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(a *Appender) {
		a.now = now
	}
}

// Appender merges logs into the database configured by DatabaseConfig.
type Appender struct {
	log    logrus.FieldLogger
	cfg    *config.DatabaseConfig
	ext    *logtable.Extractor
	policy timingdb.MergePolicy
	owner  *fsutil.OwnerConfig

	index     indexstore.Store
	indexName string
	now       func() time.Time
}

// NewAppender creates an Appender.
func NewAppender(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
	ext *logtable.Extractor,
	opts ...Option,
) (*Appender, error) {
	policy, err := timingdb.ParseMergePolicy(cfg.MergePolicy)
	if err != nil {
		return nil, err
	}

	owner, err := fsutil.ParseOwner(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("parsing database owner: %w", err)
	}

	a := &Appender{
		log:    log.WithField("component", "history"),
		cfg:    cfg,
		ext:    ext,
		policy: policy,
		owner:  owner,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// parsed is one log turned into a single-sample database.
type parsed struct {
	path string
	db   *timingdb.Database
}

// Append parses every log and merges the samples into the store in finish
// time order. Samples already present are skipped. A sample with a
// different table count aborts the append before anything is written.
func (a *Appender) Append(ctx context.Context, paths ...string) (*Result, error) {
	unlock, err := a.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	samples, err := a.parseAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	res := &Result{}

	if len(samples) == 0 {
		return res, nil
	}

	stored, err := timingdb.LoadFile(ctx, a.cfg.Path)

	switch {
	case errors.Is(err, timingdb.ErrNotFound):
		stored = samples[0].db
		samples = samples[1:]
		res.Added++

		a.log.WithFields(logrus.Fields{
			"path":   a.cfg.Path,
			"log":    filepath.Base(paths[0]),
			"tables": stored.NTables(),
		}).Info("Creating timing database")
	case err != nil:
		return nil, fmt.Errorf("loading timing database: %w", err)
	}

	for _, s := range samples {
		if s.db.NTables() != stored.NTables() {
			return nil, fmt.Errorf("%s has %d tables, store has %d: %w",
				s.path, s.db.NTables(), stored.NTables(), timingdb.ErrTableCountMismatch)
		}
	}

	diverged := make(map[int]struct{})
	backedUp := false

	for _, s := range samples {
		finish := s.db.Meta.Latest(timingdb.KeyFinishTime)
		revision := s.db.Meta.Latest(timingdb.KeyRevision)

		sampleLog := a.log.WithFields(logrus.Fields{
			"log":         s.path,
			"finish_time": finish,
			"revision":    revision,
		})

		if stored.HasSample(finish, revision) {
			sampleLog.Info("Sample already present, skipping")

			res.Skipped++

			continue
		}

		if tables := stored.Divergence(s.db); len(tables) > 0 {
			sampleLog.WithField("tables", tables).Warn("Region tree differs from stored history")

			for _, t := range tables {
				diverged[t] = struct{}{}
			}

			if a.cfg.Backup && !backedUp {
				backups, err := a.backupTrees(stored.NTables())
				if err != nil {
					return nil, err
				}

				res.Backups = append(res.Backups, backups...)
				backedUp = true
			}
		}

		if err := stored.Add(s.db, a.policy); err != nil {
			return nil, fmt.Errorf("merging %s: %w", s.path, err)
		}

		sampleLog.Info("Merged sample")

		res.Added++
	}

	for t := range diverged {
		res.Diverged = append(res.Diverged, t)
	}

	sort.Ints(res.Diverged)

	if res.Added == 0 {
		return res, nil
	}

	if err := stored.Save(a.cfg.Path, a.owner); err != nil {
		return nil, fmt.Errorf("saving timing database: %w", err)
	}

	if err := a.syncIndex(ctx, stored); err != nil {
		return nil, err
	}

	return res, nil
}

// Overwrite replaces the store with the single sample parsed from path.
func (a *Appender) Overwrite(ctx context.Context, path string) (*timingdb.Database, error) {
	unlock, err := a.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	db, err := timingdb.FromLog(a.ext, path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if timingdb.Exists(a.cfg.Path) && a.cfg.Backup {
		if _, err := a.backupAll(); err != nil {
			return nil, err
		}
	}

	if err := db.Save(a.cfg.Path, a.owner); err != nil {
		return nil, fmt.Errorf("saving timing database: %w", err)
	}

	if err := a.syncIndex(ctx, db); err != nil {
		return nil, err
	}

	a.log.WithFields(logrus.Fields{
		"path":   a.cfg.Path,
		"tables": db.NTables(),
	}).Info("Timing database overwritten")

	return db, nil
}

func (a *Appender) parseAll(ctx context.Context, paths []string) ([]parsed, error) {
	out := make([]parsed, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.cfg.Concurrency))

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			db, err := timingdb.FromLog(a.ext, path)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}

			out[i] = parsed{path: path, db: db}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].db.Meta.Latest(timingdb.KeyFinishTime) <
			out[j].db.Meta.Latest(timingdb.KeyFinishTime)
	})

	return out, nil
}

// lock takes the cross-process store lock, waiting up to LockTimeout.
func (a *Appender) lock() (func(), error) {
	dir := filepath.Dir(a.cfg.Path)
	if err := fsutil.MkdirAll(dir, 0o755, a.owner); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	lockPath := a.cfg.Path + ".lock"
	lck := fslock.New(lockPath)

	var err error
	if a.cfg.LockTimeout > 0 {
		err = lck.LockWithTimeout(a.cfg.LockTimeout)
	} else {
		err = lck.TryLock()
	}

	if err != nil {
		if errors.Is(err, fslock.ErrLocked) || errors.Is(err, fslock.ErrTimeout) {
			return nil, fmt.Errorf("%s: %w", lockPath, ErrLocked)
		}

		return nil, fmt.Errorf("locking %s: %w", lockPath, err)
	}

	return func() {
		if err := lck.Unlock(); err != nil {
			a.log.WithError(err).Warn("Failed to release store lock")
		}
	}, nil
}

func (a *Appender) stamp() string {
	return a.now().UTC().Format(backupStampLayout)
}

func (a *Appender) backupTrees(nTables int) ([]string, error) {
	names := make([]string, nTables)
	for i := range names {
		names[i] = timingdb.TreeName(a.cfg.Path, i)
	}

	return a.backup(names)
}

func (a *Appender) backupAll() ([]string, error) {
	db, err := timingdb.LoadFile(context.Background(), a.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("loading timing database for backup: %w", err)
	}

	return a.backup(timingdb.ArtifactNames(a.cfg.Path, db.NTables()))
}

func (a *Appender) backup(names []string) ([]string, error) {
	stamp := a.stamp()

	var out []string

	for _, name := range names {
		dst, err := fsutil.Backup(name, stamp, a.owner)
		if err != nil {
			return nil, fmt.Errorf("backing up %s: %w", name, err)
		}

		if dst != "" {
			out = append(out, dst)
		}
	}

	if len(out) > 0 {
		a.log.WithField("files", strings.Join(out, ", ")).Info("Backed up timing database artifacts")
	}

	return out, nil
}

func (a *Appender) syncIndex(ctx context.Context, db *timingdb.Database) error {
	if a.index == nil {
		return nil
	}

	if _, err := indexstore.Sync(ctx, a.log, a.index, a.indexName, db); err != nil {
		return fmt.Errorf("indexing samples: %w", err)
	}

	return nil
}
