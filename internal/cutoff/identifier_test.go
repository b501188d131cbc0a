package cutoff

import (
	"strings"
	"testing"
)

// The cutoff predicates are the safety-critical core; pin their shape.

func TestReadingQueriesAgreeOnPredicate(t *testing.T) {
	// The safety check must be the exact negation of the deletable predicate:
	// one counts rows older than the window, the other rows inside it.
	if !strings.Contains(readingDeletableCountSQL, "date_imported < DATE_SUB(NOW(), INTERVAL ? YEAR)") {
		t.Error("deletable count must require rows older than the window")
	}
	if !strings.Contains(readingSafetySQL, "date_imported >= DATE_SUB(NOW(), INTERVAL ? YEAR)") {
		t.Error("safety check must count rows inside the window")
	}
	for _, q := range []string{readingDeletableCountSQL, readingSafetySQL} {
		if !strings.Contains(q, "reading_id <= ?") {
			t.Error("both counts must be bounded by the cutoff")
		}
	}
}

func TestContactDeletableCountIsPerContact(t *testing.T) {
	// The tenant join fans out one row per expired tenancy; the estimate must
	// count each contact once.
	if !strings.Contains(contactDeletableCountSQL, "COUNT(DISTINCT c.contact_id)") {
		t.Error("deletable count must deduplicate contacts across tenancies")
	}
}

func TestContactCutoffAntiJoins(t *testing.T) {
	for _, table := range []string{"invoice", "journal_entry", "note", "email"} {
		if !strings.Contains(contactCutoffSQL, "FROM "+table) {
			t.Errorf("contact cutoff missing %s anti-join", table)
		}
	}
	if n := strings.Count(contactCutoffSQL, "NOT EXISTS"); n != 4 {
		t.Errorf("contact cutoff has %d anti-joins, want 4", n)
	}
	if !strings.Contains(contactCutoffSQL, "t.to_date IS NOT NULL") {
		t.Error("contact cutoff must exclude active tenancies")
	}
}

func TestCommunityCutoffGuards(t *testing.T) {
	for _, want := range []string{
		"ct.contact_type = 'Closed'",
		"LEFT(c.company_name, 2) = 'ZY'",
		"c.legal_hold = 0",
	} {
		if !strings.Contains(communityCutoffSQL, want) {
			t.Errorf("community cutoff missing guard %q", want)
		}
	}
	// A community with any tenancy active inside the window is never eligible.
	if !strings.Contains(communityCutoffSQL, "t.to_date IS NULL OR t.to_date >= DATE_SUB") {
		t.Error("community cutoff must exclude communities with active or recent tenancies")
	}
	// Legal hold must also fail the post-hoc safety count.
	if !strings.Contains(communitySafetySQL, "c.legal_hold = 1") {
		t.Error("community safety check must flag legal holds below the cutoff")
	}
}

func TestTableStatsScopedToSchema(t *testing.T) {
	if !strings.Contains(tableStatsSQL, "table_schema = DATABASE()") {
		t.Error("table stats must be scoped to the connected schema")
	}
}

func TestStatTablesKnown(t *testing.T) {
	seen := map[string]bool{}
	for _, table := range statTables {
		if seen[table] {
			t.Errorf("duplicate stat table %s", table)
		}
		seen[table] = true
	}
	for _, required := range []string{"reading", "contact", "address"} {
		if !seen[required] {
			t.Errorf("stat tables missing %s", required)
		}
	}
}
