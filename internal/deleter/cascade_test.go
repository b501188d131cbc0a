package deleter

import (
	"strings"
	"testing"
)

// The owner selection must re-derive full eligibility at delete time: the
// cutoff is only a MAX over eligible rows, so an ID below it proves nothing.
func TestEligibleCommunitySelectionRederivesEligibility(t *testing.T) {
	for _, want := range []string{
		"ct.contact_type = 'Closed'",
		"LEFT(c.company_name, 2) = 'ZY'",
		"c.last_updated_on < DATE_SUB(NOW(), INTERVAL ? YEAR)",
		"c.legal_hold = 0",
	} {
		if !strings.Contains(eligibleCommunityIDsSQL, want) {
			t.Errorf("community selection missing guard %q", want)
		}
	}

	// A community with an active tenancy (to_date IS NULL) or one ending
	// inside the window must never be selected: the cascade deletes its
	// tenant rows unconditionally.
	if !strings.Contains(eligibleCommunityIDsSQL,
		"t.to_date IS NULL OR t.to_date >= DATE_SUB(NOW(), INTERVAL ? YEAR)") {
		t.Error("community selection must exclude communities with active or recent tenancies")
	}
	if !strings.Contains(eligibleCommunityIDsSQL,
		"cb.created_on >= DATE_SUB(NOW(), INTERVAL ? YEAR)") {
		t.Error("community selection must exclude communities with recent batch membership")
	}
	if n := strings.Count(eligibleCommunityIDsSQL, "NOT EXISTS"); n != 2 {
		t.Errorf("community selection has %d anti-joins, want 2", n)
	}

	// Resume bounds plus deterministic order.
	if !strings.Contains(eligibleCommunityIDsSQL, "c.contact_id > ? AND c.contact_id <= ?") {
		t.Error("community selection missing resume range bounds")
	}
	if !strings.Contains(eligibleCommunityIDsSQL, "ORDER BY c.contact_id") {
		t.Error("community selection must order by owner ID")
	}
}

func TestCascadeTableCoverage(t *testing.T) {
	hasTable := func(tables []string, name string) bool {
		for _, table := range tables {
			if table == name {
				return true
			}
		}
		return false
	}

	for _, name := range []string{"bank", "subscription", "contact_batch",
		"contact_logical_unit", "payment_profile"} {
		if !hasTable(directFKTables, name) {
			t.Errorf("direct FK tables missing %s", name)
		}
	}
	for _, name := range []string{"address", "phone", "note"} {
		if !hasTable(communityLeafTables, name) {
			t.Errorf("leaf tables missing %s", name)
		}
	}
	for _, name := range []string{"email_attachment", "email_preview"} {
		if !hasTable(emailChildTables, name) {
			t.Errorf("email child tables missing %s", name)
		}
	}

	// Every direct FK table also has a range-walk target so batch-path
	// contacts never orphan rows the cascade would have cleaned.
	for _, name := range []string{"contact_logical_unit", "payment_profile"} {
		if _, err := ParseTarget(name); err != nil {
			t.Errorf("%s has no range-walk target: %v", name, err)
		}
	}
}
