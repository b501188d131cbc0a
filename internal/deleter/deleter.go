// Package deleter executes the deletions implied by a cutoff report:
// ID-range batches in dependency order, one transaction per batch, an
// append-only audit trail, and resume from the last logged position.
package deleter

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/harrowdale/sweeper/internal/config"
	"github.com/harrowdale/sweeper/internal/report"
)

const (
	// batchTimeout bounds a single batch statement. Anti-join deletes on
	// 60M+ row tables are slow but must not hang forever.
	batchTimeout = 10 * time.Minute

	// progressLogEvery throttles per-batch logging on long quiet stretches.
	progressLogEvery = 100
)

// Options tune a deletion run.
type Options struct {
	// DryRun disables every statement with delete effect. The loop still
	// advances through the same ranges and logs them, but nothing is
	// persisted — not even audit rows, which would poison resumption.
	DryRun bool

	// BatchSize overrides the per-table configured sizes when positive.
	BatchSize int

	// Force proceeds despite an unsafe report. Never the default.
	Force bool
}

// TableResult summarizes one table's processing.
type TableResult struct {
	Table           string
	TotalDeleted    int64
	Batches         int64
	LastProcessedID int64
	Interrupted     bool
}

// Deleter walks delete targets in dependency order.
type Deleter struct {
	db   *sqlx.DB
	log  *logrus.Entry
	opts Options

	readingYears int
	accountYears int
	delay        time.Duration
	chunkSize    int
	batchSizes   func(table string) int

	// Loaded once before the first polymorphic delete.
	types           *ObjectTypes
	contactTypeID   int64
	communityTypeID int64
}

// New creates a Deleter from configuration.
func New(db *sqlx.DB, cfg *config.Config, logger *logrus.Logger, opts Options) *Deleter {
	return &Deleter{
		db:           db,
		log:          logger.WithField("component", "deleter"),
		opts:         opts,
		readingYears: cfg.Retention.ReadingYears,
		accountYears: cfg.Retention.AccountYears,
		delay:        cfg.BatchDelay(),
		chunkSize:    cfg.Deletion.ChunkSize,
		batchSizes:   cfg.BatchSize,
	}
}

// ensureTypes loads the object-type lookup table once. Required before any
// polymorphic delete; failure is structural.
func (d *Deleter) ensureTypes(ctx context.Context) error {
	if d.types != nil {
		return nil
	}
	types, err := LoadObjectTypes(ctx, d.db, d.log)
	if err != nil {
		return structural(err)
	}
	contactID, err := types.ID(TypeNameContact)
	if err != nil {
		return err
	}
	communityID, err := types.ID(TypeNameCommunity)
	if err != nil {
		return err
	}
	d.types = types
	d.contactTypeID = contactID
	d.communityTypeID = communityID
	return nil
}

// gate enforces the report safety contract: an unsafe entry requires an
// explicit operator override.
func (d *Deleter) gate(rep *report.Report, entity string) (report.CutoffEntry, error) {
	entry, ok := rep.Entry(entity)
	if !ok {
		return entry, structural(fmt.Errorf("report has no cutoff for %s", entity))
	}
	if !entry.IsSafe && !d.opts.Force {
		return entry, structural(fmt.Errorf(
			"cutoff for %s failed its safety check; re-run identify or pass --force", entity))
	}
	return entry, nil
}

// Run processes every target in dependency order: readings first, then the
// community cascade, then the account tables child-before-parent. A canceled
// context stops cleanly between batches; the run is resumable.
func (d *Deleter) Run(ctx context.Context, rep *report.Report) error {
	if rep.RequiresReview() && !d.opts.Force {
		return structural(fmt.Errorf(
			"report status is %s; review the cutoffs or pass --force", rep.SafetyStatus))
	}

	readingEntry, err := d.gate(rep, report.EntityReading)
	if err != nil {
		return err
	}
	communityEntry, err := d.gate(rep, report.EntityCommunity)
	if err != nil {
		return err
	}
	contactEntry, err := d.gate(rep, report.EntityContact)
	if err != nil {
		return err
	}

	if _, err := d.ProcessTarget(ctx, TargetReading, readingEntry.CutoffID); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	// Communities before individual accounts: the smallest, safest slice of
	// the account tree.
	if _, err := d.DeleteCommunities(ctx, communityEntry.CutoffID); err != nil {
		return err
	}

	for _, t := range DeletionOrder() {
		if t == TargetReading {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if _, err := d.ProcessTarget(ctx, t, contactEntry.CutoffID); err != nil {
			return err
		}
	}
	return nil
}

// RunTable processes a single operator-selected target against the report.
func (d *Deleter) RunTable(ctx context.Context, rep *report.Report, t Target) (TableResult, error) {
	if rep.RequiresReview() && !d.opts.Force {
		return TableResult{}, structural(fmt.Errorf(
			"report status is %s; review the cutoffs or pass --force", rep.SafetyStatus))
	}

	entity := report.EntityContact
	switch t {
	case TargetReading:
		entity = report.EntityReading
	case TargetCommunity:
		entity = report.EntityCommunity
	}
	entry, err := d.gate(rep, entity)
	if err != nil {
		return TableResult{}, err
	}
	return d.ProcessTarget(ctx, t, entry.CutoffID)
}

// ProcessTarget walks one table's ID range in ascending contiguous batches.
// Invariants: sub-ranges never overlap and never leave gaps; every executed
// batch commits and logs exactly one audit row before the loop advances;
// the loop exits at the top of an iteration once ctx is canceled, so the
// in-flight batch always completes.
func (d *Deleter) ProcessTarget(ctx context.Context, t Target, cutoffID int64) (TableResult, error) {
	if t == TargetCommunity {
		return d.DeleteCommunities(ctx, cutoffID)
	}

	res := TableResult{Table: t.String()}
	log := d.log.WithField("table", res.Table)

	if cutoffID <= 0 {
		log.Info("no records to delete (zero cutoff)")
		return res, nil
	}
	if err := d.ensureAuditLog(ctx); err != nil {
		return res, err
	}
	// Every account-related statement embeds the contact type ID, whether or
	// not the table itself is polymorphic.
	if t != TargetReading {
		if err := d.ensureTypes(ctx); err != nil {
			return res, err
		}
	}

	last, err := d.lastProcessedID(ctx, res.Table)
	if err != nil {
		return res, err
	}
	startID := last + 1
	if startID > cutoffID {
		log.WithField("cutoff_id", cutoffID).Info("table already fully processed")
		return res, nil
	}

	size := int64(d.batchSize(res.Table))
	log.WithFields(logrus.Fields{
		"start_id":   startID,
		"cutoff_id":  cutoffID,
		"batch_size": size,
		"dry_run":    d.opts.DryRun,
	}).Info("processing table")

	current := startID
	for current <= cutoffID {
		if ctx.Err() != nil {
			res.Interrupted = true
			log.WithField("next_id", current).Info("interrupted; stopping after committed batch")
			break
		}

		endID := min(current+size-1, cutoffID)
		started := time.Now()

		var deleted int64
		if d.opts.DryRun {
			log.WithFields(logrus.Fields{
				"batch_start": current,
				"batch_end":   endID,
			}).Info("dry run: would process batch")
		} else {
			deleted, err = d.execBatch(t, current, endID)
			if err != nil {
				return res, structural(fmt.Errorf("batch %s [%d,%d]: %w", res.Table, current, endID, err))
			}
			if err := d.logBatch(context.Background(), res.Table, current, endID, deleted, time.Since(started)); err != nil {
				return res, err
			}
		}

		res.TotalDeleted += deleted
		res.Batches++
		res.LastProcessedID = endID

		if deleted > 0 || res.Batches%progressLogEvery == 0 {
			log.WithFields(logrus.Fields{
				"batch_start":   current,
				"batch_end":     endID,
				"deleted":       deleted,
				"total_deleted": res.TotalDeleted,
			}).Info("batch complete")
		}

		current = endID + 1
		if d.delay > 0 && current <= cutoffID && ctx.Err() == nil {
			time.Sleep(d.delay)
		}
	}

	if res.Interrupted {
		log.WithFields(logrus.Fields{
			"total_deleted":     res.TotalDeleted,
			"last_processed_id": res.LastProcessedID,
		}).Info("table processing interrupted; resumable")
	} else {
		log.WithFields(logrus.Fields{
			"total_deleted": res.TotalDeleted,
			"batches":       res.Batches,
		}).Info("table processing complete")
	}
	return res, nil
}

// execBatch runs one batch as a single all-or-nothing transaction. It uses
// its own timeout rather than the run context so an interrupt never aborts
// the batch mid-flight.
func (d *Deleter) execBatch(t Target, startID, endID int64) (int64, error) {
	query, args, err := d.batchStatement(t, startID, endID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	deleted, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}

// batchSize resolves the effective batch width for a table.
func (d *Deleter) batchSize(table string) int {
	if d.opts.BatchSize > 0 {
		return d.opts.BatchSize
	}
	return d.batchSizes(table)
}

// chunkIDs partitions an ID list into fixed-size chunks for IN-clause
// embedding.
func chunkIDs(ids []int64, size int) [][]int64 {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
