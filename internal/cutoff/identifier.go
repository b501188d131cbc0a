// Package cutoff computes safe primary-key deletion bounds per entity and
// verifies each bound with a post-hoc safety count.
package cutoff

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/harrowdale/sweeper/internal/config"
	"github.com/harrowdale/sweeper/internal/report"
)

// statTables is the fixed set of physical tables whose size statistics go
// into the report. Ordered by expected volume.
var statTables = []string{
	"reading", "address", "phone", "email", "note", "invoice_detail", "contact", "tenant",
}

// Reading cutoff: the minimum in-window ID, minus one, bounds the deletable
// range. COALESCE to 0 signals the empty/no-recent-rows case.
const (
	readingTotalSQL = `SELECT COUNT(*) FROM reading`

	readingMinInWindowSQL = `
		SELECT COALESCE(MIN(reading_id), 0)
		FROM reading
		WHERE date_imported >= DATE_SUB(NOW(), INTERVAL ? YEAR)`

	readingMaxIDSQL = `SELECT COALESCE(MAX(reading_id), 0) FROM reading`

	readingDeletableCountSQL = `
		SELECT COUNT(*)
		FROM reading
		WHERE reading_id <= ?
		AND date_imported < DATE_SUB(NOW(), INTERVAL ? YEAR)`

	// Safety re-check: no row at or below the cutoff may sit inside the
	// retention window. Must count zero for is_safe.
	readingSafetySQL = `
		SELECT COUNT(*)
		FROM reading
		WHERE reading_id <= ?
		AND date_imported >= DATE_SUB(NOW(), INTERVAL ? YEAR)`
)

// Contact cutoff: deactivated more than the window ago, and no financial or
// correspondence activity inside the window (four-way anti-join).
const (
	contactCutoffSQL = `
		SELECT COALESCE(MAX(c.contact_id), 0)
		FROM contact c
		JOIN tenant t ON t.contact_id = c.contact_id
		WHERE t.to_date IS NOT NULL
		AND t.to_date < DATE_SUB(NOW(), INTERVAL ? YEAR)
		AND NOT EXISTS (
			SELECT 1 FROM invoice i
			WHERE i.object_id = c.contact_id AND i.object_type_id = ?
			AND i.invoice_date >= DATE_SUB(NOW(), INTERVAL ? YEAR))
		AND NOT EXISTS (
			SELECT 1 FROM journal_entry je
			WHERE je.object_id = c.contact_id AND je.object_type_id = ?
			AND je.journal_entry_date >= DATE_SUB(NOW(), INTERVAL ? YEAR))
		AND NOT EXISTS (
			SELECT 1 FROM note n
			WHERE n.object_id = c.contact_id AND n.object_type_id = ?
			AND n.last_updated_on >= DATE_SUB(NOW(), INTERVAL ? YEAR))
		AND NOT EXISTS (
			SELECT 1 FROM email e
			WHERE e.object_id = c.contact_id AND e.object_type_id = ?
			AND e.email_date >= DATE_SUB(NOW(), INTERVAL ? YEAR))`

	// DISTINCT: a contact with several expired tenancies still counts once.
	contactDeletableCountSQL = `
		SELECT COUNT(DISTINCT c.contact_id)
		FROM contact c
		JOIN tenant t ON t.contact_id = c.contact_id
		WHERE c.contact_id <= ?
		AND t.to_date IS NOT NULL
		AND t.to_date < DATE_SUB(NOW(), INTERVAL ? YEAR)`

	contactSafetySQL = `
		SELECT COUNT(*)
		FROM contact c
		WHERE c.contact_id <= ?
		AND c.last_updated_on >= DATE_SUB(NOW(), INTERVAL ? YEAR)`
)

// Community cutoff: explicitly closed or carrying the ZY decommission prefix,
// stale for the full window, no active tenancy, no recent batch membership,
// and never under legal hold.
const (
	communityCutoffSQL = `
		SELECT COALESCE(MAX(c.contact_id), 0)
		FROM contact c
		JOIN contact_type ct ON ct.contact_type_id = c.contact_type_id
		WHERE (ct.contact_type = 'Closed' OR LEFT(c.company_name, 2) = 'ZY')
		AND c.last_updated_on < DATE_SUB(NOW(), INTERVAL ? YEAR)
		AND c.legal_hold = 0
		AND NOT EXISTS (
			SELECT 1 FROM tenant t
			WHERE t.community_id = c.contact_id
			AND (t.to_date IS NULL OR t.to_date >= DATE_SUB(NOW(), INTERVAL ? YEAR)))
		AND NOT EXISTS (
			SELECT 1 FROM contact_batch cb
			WHERE cb.contact_id = c.contact_id
			AND cb.created_on >= DATE_SUB(NOW(), INTERVAL ? YEAR))`

	communityDeletableCountSQL = `
		SELECT COUNT(*)
		FROM contact c
		JOIN contact_type ct ON ct.contact_type_id = c.contact_type_id
		WHERE c.contact_id <= ?
		AND (ct.contact_type = 'Closed' OR LEFT(c.company_name, 2) = 'ZY')
		AND c.last_updated_on < DATE_SUB(NOW(), INTERVAL ? YEAR)
		AND c.legal_hold = 0`

	communitySafetySQL = `
		SELECT COUNT(*)
		FROM contact c
		JOIN contact_type ct ON ct.contact_type_id = c.contact_type_id
		WHERE c.contact_id <= ?
		AND (ct.contact_type = 'Closed' OR LEFT(c.company_name, 2) = 'ZY')
		AND (c.last_updated_on >= DATE_SUB(NOW(), INTERVAL ? YEAR) OR c.legal_hold = 1)`
)

const tableStatsSQL = `
	SELECT
		COALESCE(table_rows, 0) AS table_rows,
		ROUND(COALESCE(data_length, 0)/1024/1024, 2) AS data_mb,
		ROUND(COALESCE(index_length, 0)/1024/1024, 2) AS index_mb,
		ROUND((COALESCE(data_length, 0)+COALESCE(index_length, 0))/1024/1024, 2) AS total_mb
	FROM information_schema.tables
	WHERE table_schema = DATABASE() AND table_name = ?`

// objectTypeContact is the polymorphic type ID for contact-owned rows in the
// identifier's anti-joins. The deleter resolves type IDs from the lookup
// table at run time; the identifier only reads, so the well-known constant
// is acceptable here.
const objectTypeContact = 1

// Identifier computes cutoff entries for every entity class.
type Identifier struct {
	db  *sqlx.DB
	log *logrus.Entry

	readingYears int
	accountYears int
	now          func() time.Time
}

// New creates an Identifier with the configured retention windows.
func New(db *sqlx.DB, cfg *config.Config, logger *logrus.Logger) *Identifier {
	return &Identifier{
		db:           db,
		log:          logger.WithField("component", "cutoff"),
		readingYears: cfg.Retention.ReadingYears,
		accountYears: cfg.Retention.AccountYears,
		now:          time.Now,
	}
}

// GenerateReport computes every cutoff and gathers table statistics. Each
// entity block is fault-isolated: a query failure defaults that entity to
// (cutoff=0, deletions=0, safe=false) and the run continues.
func (id *Identifier) GenerateReport(ctx context.Context) *report.Report {
	rep := &report.Report{
		GeneratedAt: id.now(),
		RunID:       uuid.NewString(),
		Cutoffs:     make(map[string]report.CutoffEntry),
		TableStats:  make(map[string]report.TableStats),
	}

	type analyzer struct {
		entity string
		years  int
		run    func(context.Context) (report.CutoffEntry, error)
	}
	analyzers := []analyzer{
		{report.EntityReading, id.readingYears, id.identifyReading},
		{report.EntityContact, id.accountYears, id.identifyContact},
		{report.EntityCommunity, id.accountYears, id.identifyCommunity},
	}

	for _, a := range analyzers {
		log := id.log.WithField("entity", a.entity)
		log.Info("analyzing entity")

		entry, err := a.run(ctx)
		if err != nil {
			log.WithError(err).Error("identification failed; defaulting to unsafe zero cutoff")
			entry = report.CutoffEntry{}
		}
		entry.CutoffDate = id.now().AddDate(-a.years, 0, 0)
		rep.Cutoffs[a.entity] = entry

		log.WithFields(logrus.Fields{
			"cutoff_id":           entry.CutoffID,
			"estimated_deletions": entry.EstimatedDeletions,
			"is_safe":             entry.IsSafe,
		}).Info("entity analysis complete")
	}

	for _, table := range statTables {
		stats, err := id.tableStats(ctx, table)
		if err != nil {
			id.log.WithError(err).WithField("table", table).Error("table statistics failed")
			continue
		}
		rep.TableStats[table] = stats
	}

	rep.ComputeSafetyStatus()
	return rep
}

// identifyReading finds the reading cutoff: everything below the minimum
// in-window ID is older than the window. When nothing falls inside the
// window there is no provable boundary, so the cutoff falls back to
// max(id)+1 with zero estimated deletions; the deleter's own date predicate
// still re-derives eligibility row by row.
func (id *Identifier) identifyReading(ctx context.Context) (report.CutoffEntry, error) {
	var entry report.CutoffEntry

	var total int64
	if err := id.db.GetContext(ctx, &total, readingTotalSQL); err != nil {
		return entry, err
	}
	id.log.WithField("total_readings", total).Info("reading table size")

	var minInWindow int64
	if err := id.db.GetContext(ctx, &minInWindow, readingMinInWindowSQL, id.readingYears); err != nil {
		return entry, err
	}

	if minInWindow == 0 {
		id.log.Warn("no readings inside the retention window; using fail-safe cutoff")
		var maxID int64
		if err := id.db.GetContext(ctx, &maxID, readingMaxIDSQL); err != nil {
			return entry, err
		}
		entry.CutoffID = maxID + 1
		entry.EstimatedDeletions = 0
	} else {
		entry.CutoffID = minInWindow - 1
		if err := id.db.GetContext(ctx, &entry.EstimatedDeletions, readingDeletableCountSQL,
			entry.CutoffID, id.readingYears); err != nil {
			return entry, err
		}
	}

	violations, err := id.verify(ctx, readingSafetySQL, entry.CutoffID, id.readingYears)
	if err != nil {
		return entry, err
	}
	entry.IsSafe = violations == 0
	if !entry.IsSafe {
		id.log.WithField("violations", violations).Warn("reading safety check failed")
	}
	return entry, nil
}

// identifyContact finds the account cutoff via the four-way anti-join.
func (id *Identifier) identifyContact(ctx context.Context) (report.CutoffEntry, error) {
	var entry report.CutoffEntry

	y := id.accountYears
	if err := id.db.GetContext(ctx, &entry.CutoffID, contactCutoffSQL,
		y,
		objectTypeContact, y,
		objectTypeContact, y,
		objectTypeContact, y,
		objectTypeContact, y); err != nil {
		return entry, err
	}

	if entry.CutoffID > 0 {
		if err := id.db.GetContext(ctx, &entry.EstimatedDeletions, contactDeletableCountSQL,
			entry.CutoffID, y); err != nil {
			return entry, err
		}
		violations, err := id.verify(ctx, contactSafetySQL, entry.CutoffID, y)
		if err != nil {
			return entry, err
		}
		entry.IsSafe = violations == 0
		if !entry.IsSafe {
			id.log.WithField("violations", violations).Warn("contact safety check failed")
		}
	} else {
		// Nothing eligible: a zero cutoff deletes nothing, which is safe.
		entry.IsSafe = true
	}
	return entry, nil
}

// identifyCommunity finds the community cutoff.
func (id *Identifier) identifyCommunity(ctx context.Context) (report.CutoffEntry, error) {
	var entry report.CutoffEntry

	y := id.accountYears
	if err := id.db.GetContext(ctx, &entry.CutoffID, communityCutoffSQL, y, y, y); err != nil {
		return entry, err
	}

	if entry.CutoffID > 0 {
		if err := id.db.GetContext(ctx, &entry.EstimatedDeletions, communityDeletableCountSQL,
			entry.CutoffID, y); err != nil {
			return entry, err
		}
		violations, err := id.verify(ctx, communitySafetySQL, entry.CutoffID, y)
		if err != nil {
			return entry, err
		}
		entry.IsSafe = violations == 0
		if !entry.IsSafe {
			id.log.WithField("violations", violations).Warn("community safety check failed")
		}
	} else {
		entry.IsSafe = true
	}
	return entry, nil
}

// verify runs a safety count query: the number of rows at or below the
// cutoff that violate the freshness predicate which defined eligibility.
func (id *Identifier) verify(ctx context.Context, query string, cutoffID int64, years int) (int64, error) {
	var violations int64
	if err := id.db.GetContext(ctx, &violations, query, cutoffID, years); err != nil {
		return 0, err
	}
	return violations, nil
}

// tableStats reads size statistics for one table from information_schema.
func (id *Identifier) tableStats(ctx context.Context, table string) (report.TableStats, error) {
	var stats report.TableStats
	if err := id.db.GetContext(ctx, &stats, tableStatsSQL, table); err != nil {
		return stats, err
	}
	return stats, nil
}
