package deleter

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// The deletion_log table is the append-only audit trail: one row per batch
// attempt. It doubles as the resume source — a table's next start ID is
// 1 + max(batch_end_id).
const createDeletionLogSQL = `
	CREATE TABLE IF NOT EXISTS deletion_log (
		log_id INT AUTO_INCREMENT PRIMARY KEY,
		table_name VARCHAR(64) NOT NULL,
		batch_start_id BIGINT NOT NULL,
		batch_end_id BIGINT NOT NULL,
		records_deleted INT NOT NULL,
		execution_time_ms INT,
		deleted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_table_batch (table_name, batch_start_id)
	)`

const lastProcessedIDSQL = `
	SELECT COALESCE(MAX(batch_end_id), 0)
	FROM deletion_log
	WHERE table_name = ?`

const insertBatchLogSQL = `
	INSERT INTO deletion_log
	(table_name, batch_start_id, batch_end_id, records_deleted, execution_time_ms)
	VALUES (?, ?, ?, ?, ?)`

const progressSQL = `
	SELECT
		table_name,
		COUNT(*) AS batches,
		COALESCE(SUM(records_deleted), 0) AS total_deleted,
		MAX(batch_end_id) AS progress_id,
		MIN(deleted_at) AS started,
		MAX(deleted_at) AS last_batch,
		COALESCE(AVG(execution_time_ms), 0) AS avg_time_ms
	FROM deletion_log
	GROUP BY table_name
	ORDER BY table_name`

// TableProgress summarizes the audit trail for one table.
type TableProgress struct {
	TableName    string       `db:"table_name"`
	Batches      int64        `db:"batches"`
	TotalDeleted int64        `db:"total_deleted"`
	ProgressID   int64        `db:"progress_id"`
	Started      sql.NullTime `db:"started"`
	LastBatch    sql.NullTime `db:"last_batch"`
	AvgTimeMS    float64      `db:"avg_time_ms"`
}

// ensureAuditLog creates the deletion_log table when missing.
func (d *Deleter) ensureAuditLog(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, createDeletionLogSQL); err != nil {
		return structural(fmt.Errorf("creating deletion_log table: %w", err))
	}
	return nil
}

// lastProcessedID returns the resume position for a table: the highest
// batch_end_id already logged, or 0 for an untouched table.
func (d *Deleter) lastProcessedID(ctx context.Context, table string) (int64, error) {
	var last int64
	if err := d.db.GetContext(ctx, &last, lastProcessedIDSQL, table); err != nil {
		return 0, structural(fmt.Errorf("reading resume position for %s: %w", table, err))
	}
	return last, nil
}

// logBatch appends one audit row. Audit failure is structural: losing the
// trail would break both resumption and traceability.
func (d *Deleter) logBatch(ctx context.Context, table string, startID, endID, deleted int64, took time.Duration) error {
	_, err := d.db.ExecContext(ctx, insertBatchLogSQL,
		table, startID, endID, deleted, took.Milliseconds())
	if err != nil {
		return structural(fmt.Errorf("logging batch %s [%d,%d]: %w", table, startID, endID, err))
	}
	return nil
}

// Progress reads the per-table audit summary for external reporting.
func (d *Deleter) Progress(ctx context.Context) ([]TableProgress, error) {
	if err := d.ensureAuditLog(ctx); err != nil {
		return nil, err
	}
	var rows []TableProgress
	if err := d.db.SelectContext(ctx, &rows, progressSQL); err != nil {
		return nil, fmt.Errorf("reading progress: %w", err)
	}
	return rows, nil
}
