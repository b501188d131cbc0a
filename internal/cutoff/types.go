package cutoff

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// TypeCount is one contact type with its usage count.
type TypeCount struct {
	TypeID int64  `db:"contact_type_id"`
	Name   string `db:"contact_type"`
	Count  int64  `db:"contact_count"`
}

// StaleTypeCount is one contact type with its count of window-stale contacts.
type StaleTypeCount struct {
	Name         string    `db:"contact_type"`
	StaleCount   int64     `db:"stale_count"`
	OldestUpdate time.Time `db:"oldest_update"`
	NewestUpdate time.Time `db:"newest_update"`
}

// TypeSurvey summarizes the contact_type table so an operator can confirm
// which types mark closed or decommissioned communities before trusting the
// community cutoff predicate.
type TypeSurvey struct {
	AllTypes       []TypeCount
	ClosedTypes    []TypeCount
	CommunityTypes []TypeCount
	StaleByType    []StaleTypeCount
}

const allTypesSQL = `
	SELECT ct.contact_type_id, ct.contact_type, COUNT(c.contact_id) AS contact_count
	FROM contact_type ct
	LEFT JOIN contact c ON c.contact_type_id = ct.contact_type_id
	GROUP BY ct.contact_type_id, ct.contact_type
	ORDER BY contact_count DESC`

const closedTypesSQL = `
	SELECT ct.contact_type_id, ct.contact_type, COUNT(c.contact_id) AS contact_count
	FROM contact_type ct
	LEFT JOIN contact c ON c.contact_type_id = ct.contact_type_id
	WHERE LOWER(ct.contact_type) LIKE '%clos%'
	   OR LOWER(ct.contact_type) LIKE '%inact%'
	   OR LOWER(ct.contact_type) LIKE '%term%'
	   OR LOWER(ct.contact_type) LIKE '%cancel%'
	   OR LOWER(ct.contact_type) LIKE '%expir%'
	   OR LOWER(ct.contact_type) LIKE '%suspend%'
	GROUP BY ct.contact_type_id, ct.contact_type
	ORDER BY contact_count DESC`

const communityTypesSQL = `
	SELECT ct.contact_type_id, ct.contact_type, COUNT(c.contact_id) AS contact_count
	FROM contact_type ct
	LEFT JOIN contact c ON c.contact_type_id = ct.contact_type_id
	WHERE LOWER(ct.contact_type) LIKE '%commun%'
	   OR LOWER(ct.contact_type) LIKE '%proper%'
	   OR LOWER(ct.contact_type) LIKE '%build%'
	   OR LOWER(ct.contact_type) LIKE '%site%'
	GROUP BY ct.contact_type_id, ct.contact_type
	ORDER BY contact_count DESC`

const staleByTypeSQL = `
	SELECT
		ct.contact_type,
		COUNT(*) AS stale_count,
		MIN(c.last_updated_on) AS oldest_update,
		MAX(c.last_updated_on) AS newest_update
	FROM contact c
	JOIN contact_type ct ON ct.contact_type_id = c.contact_type_id
	WHERE c.last_updated_on < DATE_SUB(NOW(), INTERVAL ? YEAR)
	GROUP BY ct.contact_type_id, ct.contact_type
	HAVING COUNT(*) > 0
	ORDER BY stale_count DESC`

// SurveyContactTypes gathers the contact-type survey. Unlike the cutoff
// analyzers this is not fault-isolated: any failure aborts, because a
// partial survey would invite wrong conclusions.
func SurveyContactTypes(ctx context.Context, db *sqlx.DB, accountYears int) (*TypeSurvey, error) {
	s := &TypeSurvey{}

	if err := db.SelectContext(ctx, &s.AllTypes, allTypesSQL); err != nil {
		return nil, err
	}
	if err := db.SelectContext(ctx, &s.ClosedTypes, closedTypesSQL); err != nil {
		return nil, err
	}
	if err := db.SelectContext(ctx, &s.CommunityTypes, communityTypesSQL); err != nil {
		return nil, err
	}
	if err := db.SelectContext(ctx, &s.StaleByType, staleByTypeSQL, accountYears); err != nil {
		return nil, err
	}
	return s, nil
}
