package deleter

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Communities are deleted by owner cascade rather than ID-range walking:
// their polymorphic rows are bulk-deleted by owner ID list, then each
// community's remaining tree (emails with children, direct FK rows, the
// contact row) goes in one per-owner transaction.

// communityLeafTables are bulk-deleted by (object_type_id, object_id IN ...)
// before the per-owner pass. Ordered by expected volume.
var communityLeafTables = []string{"address", "phone", "note"}

// directFKTables reference the contact by a plain foreign key.
var directFKTables = []string{"bank", "subscription", "contact_batch", "contact_logical_unit", "payment_profile"}

// emailChildTables reference emails, never the contact directly.
var emailChildTables = []string{"email_attachment", "email_preview"}

// Full eligibility is re-derived here, not just staleness: the cutoff is a
// MAX over eligible rows, so IDs below it are not all eligible. A community
// with any active or window-recent tenancy, or recent batch membership, must
// never be selected — the cascade deletes its tenant rows unconditionally.
const eligibleCommunityIDsSQL = `
	SELECT c.contact_id
	FROM contact c
	JOIN contact_type ct ON ct.contact_type_id = c.contact_type_id
	WHERE c.contact_id > ? AND c.contact_id <= ?
	AND (ct.contact_type = 'Closed' OR LEFT(c.company_name, 2) = 'ZY')
	AND c.last_updated_on < DATE_SUB(NOW(), INTERVAL ? YEAR)
	AND c.legal_hold = 0
	AND NOT EXISTS (
		SELECT 1 FROM tenant t
		WHERE t.community_id = c.contact_id
		AND (t.to_date IS NULL OR t.to_date >= DATE_SUB(NOW(), INTERVAL ? YEAR)))
	AND NOT EXISTS (
		SELECT 1 FROM contact_batch cb
		WHERE cb.contact_id = c.contact_id
		AND cb.created_on >= DATE_SUB(NOW(), INTERVAL ? YEAR))
	ORDER BY c.contact_id`

const selectOwnerEmailIDsSQL = `
	SELECT email_id FROM email
	WHERE object_id = ? AND object_type_id = ?`

// DeleteCommunities cascades deletion for every eligible community at or
// below the cutoff. Progress is audited per owner under the "community"
// table name, so an interrupted run resumes past completed owners.
func (d *Deleter) DeleteCommunities(ctx context.Context, cutoffID int64) (TableResult, error) {
	res := TableResult{Table: TargetCommunity.String()}
	log := d.log.WithField("table", res.Table)

	if cutoffID <= 0 {
		log.Info("no communities to delete (zero cutoff)")
		return res, nil
	}
	if err := d.ensureAuditLog(ctx); err != nil {
		return res, err
	}
	if err := d.ensureTypes(ctx); err != nil {
		return res, err
	}

	last, err := d.lastProcessedID(ctx, res.Table)
	if err != nil {
		return res, err
	}

	var ids []int64
	if err := d.db.SelectContext(ctx, &ids, eligibleCommunityIDsSQL,
		last, cutoffID, d.accountYears, d.accountYears, d.accountYears); err != nil {
		return res, structural(fmt.Errorf("selecting eligible communities: %w", err))
	}
	if len(ids) == 0 {
		log.WithField("cutoff_id", cutoffID).Info("no eligible communities remain")
		return res, nil
	}

	log.WithFields(logrus.Fields{
		"communities": len(ids),
		"start_id":    ids[0],
		"cutoff_id":   cutoffID,
		"dry_run":     d.opts.DryRun,
	}).Info("deleting communities")

	if d.opts.DryRun {
		return d.dryRunCommunities(ctx, ids)
	}

	// Phase 1: bulk-delete polymorphic leaves for all owners. Idempotent, so
	// a resumed run repeating this for retried owners deletes nothing.
	for _, table := range communityLeafTables {
		if ctx.Err() != nil {
			res.Interrupted = true
			return res, nil
		}
		deleted, err := d.deletePolymorphicByOwners(ctx, table, d.communityTypeID, ids)
		if err != nil {
			return res, structural(fmt.Errorf("bulk delete %s for communities: %w", table, err))
		}
		res.TotalDeleted += deleted
		if deleted > 0 {
			log.WithFields(logrus.Fields{"leaf_table": table, "deleted": deleted}).
				Info("bulk-deleted community rows")
		}
	}

	// Phase 2: per-owner cascade. A failed owner rolls back and the run
	// continues; only structural errors abort.
	for _, ownerID := range ids {
		if ctx.Err() != nil {
			res.Interrupted = true
			log.WithField("next_id", ownerID).Info("interrupted; stopping after committed owner")
			break
		}

		started := time.Now()
		deleted, err := d.deleteCommunityOwner(ownerID)
		if err != nil {
			if IsStructural(err) {
				return res, err
			}
			log.WithError(err).WithField("community_id", ownerID).
				Warn("community cascade failed; continuing with next")
			continue
		}
		if err := d.logBatch(context.Background(), res.Table, ownerID, ownerID, deleted, time.Since(started)); err != nil {
			return res, err
		}

		res.TotalDeleted += deleted
		res.Batches++
		res.LastProcessedID = ownerID

		if res.Batches%10 == 0 {
			log.WithFields(logrus.Fields{
				"processed":     res.Batches,
				"total_deleted": res.TotalDeleted,
			}).Info("community progress")
		}
		if d.delay > 0 && ctx.Err() == nil {
			time.Sleep(d.delay)
		}
	}

	log.WithFields(logrus.Fields{
		"processed":     res.Batches,
		"total_deleted": res.TotalDeleted,
		"interrupted":   res.Interrupted,
	}).Info("community deletion finished")
	return res, nil
}

// dryRunCommunities reports what a real run would touch, without deleting
// or writing audit rows.
func (d *Deleter) dryRunCommunities(ctx context.Context, ids []int64) (TableResult, error) {
	res := TableResult{Table: TargetCommunity.String()}
	log := d.log.WithField("table", res.Table)

	for _, table := range communityLeafTables {
		count, err := d.countPolymorphicByOwners(ctx, table, d.communityTypeID, ids)
		if err != nil {
			return res, structural(fmt.Errorf("dry-run count %s: %w", table, err))
		}
		log.WithFields(logrus.Fields{"leaf_table": table, "rows": count}).
			Info("dry run: would bulk-delete community rows")
	}
	for _, ownerID := range ids {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		log.WithField("community_id", ownerID).Info("dry run: would cascade-delete community")
		res.Batches++
		res.LastProcessedID = ownerID
	}
	return res, nil
}

// deletePolymorphicByOwners deletes rows owned by the given IDs from one
// polymorphic table. The ID list is split into IN-clause chunks, and each
// chunk is drained in LIMIT-capped sub-batches with a commit between each,
// bounding statement size and lock duration.
func (d *Deleter) deletePolymorphicByOwners(ctx context.Context, table string, typeID int64, ownerIDs []int64) (int64, error) {
	limit := int64(d.batchSize(table))
	var total int64

	for _, chunk := range chunkIDs(ownerIDs, d.chunkSize) {
		if ctx.Err() != nil {
			return total, nil
		}
		query, args, err := sqlx.In(
			`DELETE FROM `+table+` WHERE object_type_id = ? AND object_id IN (?) LIMIT ?`,
			typeID, chunk, limit)
		if err != nil {
			return total, fmt.Errorf("building IN clause for %s: %w", table, err)
		}

		for {
			deleted, err := d.execTimed(query, args...)
			if err != nil {
				return total, err
			}
			total += deleted
			if deleted < limit || ctx.Err() != nil {
				break
			}
		}
	}
	return total, nil
}

// countPolymorphicByOwners is the dry-run counterpart of
// deletePolymorphicByOwners.
func (d *Deleter) countPolymorphicByOwners(ctx context.Context, table string, typeID int64, ownerIDs []int64) (int64, error) {
	var total int64
	for _, chunk := range chunkIDs(ownerIDs, d.chunkSize) {
		query, args, err := sqlx.In(
			`SELECT COUNT(*) FROM `+table+` WHERE object_type_id = ? AND object_id IN (?)`,
			typeID, chunk)
		if err != nil {
			return total, fmt.Errorf("building IN clause for %s: %w", table, err)
		}
		var count int64
		if err := d.db.GetContext(ctx, &count, query, args...); err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}

// deleteCommunityOwner removes one community's remaining tree in a single
// transaction: email children, emails, direct FK rows, then the contact row.
// Errors here are row-local; the caller rolls forward to the next owner.
func (d *Deleter) deleteCommunityOwner(ownerID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, structural(fmt.Errorf("begin owner transaction: %w", err))
	}
	deleted, err := d.deleteOwnerTree(ctx, tx, ownerID)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("community %d: %w", ownerID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("community %d: commit: %w", ownerID, err)
	}
	return deleted, nil
}

func (d *Deleter) deleteOwnerTree(ctx context.Context, tx *sqlx.Tx, ownerID int64) (int64, error) {
	var total int64

	var emailIDs []int64
	if err := tx.SelectContext(ctx, &emailIDs, selectOwnerEmailIDsSQL, ownerID, d.communityTypeID); err != nil {
		return 0, fmt.Errorf("selecting emails: %w", err)
	}
	if len(emailIDs) > 0 {
		for _, child := range emailChildTables {
			query, args, err := sqlx.In(`DELETE FROM `+child+` WHERE email_id IN (?)`, emailIDs)
			if err != nil {
				return total, fmt.Errorf("building IN clause for %s: %w", child, err)
			}
			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return total, fmt.Errorf("deleting %s: %w", child, err)
			}
			n, _ := result.RowsAffected()
			total += n
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM email WHERE object_id = ? AND object_type_id = ?`,
			ownerID, d.communityTypeID)
		if err != nil {
			return total, fmt.Errorf("deleting emails: %w", err)
		}
		n, _ := result.RowsAffected()
		total += n
	}

	// Historical tenancies reference the community; eligibility already
	// guaranteed none is active or recent.
	result, err := tx.ExecContext(ctx, `DELETE FROM tenant WHERE community_id = ?`, ownerID)
	if err != nil {
		return total, fmt.Errorf("deleting tenancies: %w", err)
	}
	n, _ := result.RowsAffected()
	total += n

	for _, table := range directFKTables {
		result, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE contact_id = ?`, ownerID)
		if err != nil {
			return total, fmt.Errorf("deleting %s: %w", table, err)
		}
		n, _ := result.RowsAffected()
		total += n
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM contact WHERE contact_id = ?`, ownerID)
	if err != nil {
		return total, fmt.Errorf("deleting contact row: %w", err)
	}
	n, _ = result.RowsAffected()
	total += n

	return total, nil
}

// execTimed runs one autocommitted statement on its own timeout.
func (d *Deleter) execTimed(query string, args ...interface{}) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return n, nil
}
