package deleter

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func testDeleter() *Deleter {
	return &Deleter{
		log:             logrus.New().WithField("component", "deleter"),
		readingYears:    2,
		accountYears:    7,
		contactTypeID:   1,
		communityTypeID: 49,
		chunkSize:       1000,
		batchSizes:      func(string) int { return 1000 },
	}
}

func TestBatchStatementReading(t *testing.T) {
	d := testDeleter()

	query, args, err := d.batchStatement(TargetReading, 1, 10000)
	if err != nil {
		t.Fatalf("batchStatement: %v", err)
	}
	for _, want := range []string{
		"DELETE r FROM reading r",
		"LEFT JOIN sm_usage su",
		"su.reading_id IS NULL",
		"r.reading_id BETWEEN ? AND ?",
		"date_imported < DATE_SUB(NOW(), INTERVAL ? YEAR)",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("reading statement missing %q", want)
		}
	}
	if len(args) != 3 {
		t.Fatalf("reading args = %d, want 3", len(args))
	}
	if args[0] != int64(1) || args[1] != int64(10000) || args[2] != int64(2) {
		t.Errorf("reading args = %v", args)
	}
}

func TestBatchStatementsGuardEligibility(t *testing.T) {
	d := testDeleter()

	// Every account-related statement must re-derive eligibility rather than
	// trust the ID range alone.
	accountTargets := []Target{
		TargetEmailAttachment, TargetEmailPreview, TargetEmail,
		TargetInvoiceDetail, TargetInvoice,
		TargetAddress, TargetPhone, TargetNote,
		TargetBank, TargetSubscription, TargetContactBatch,
		TargetContactLogicalUnit, TargetPaymentProfile,
	}
	for _, target := range accountTargets {
		query, args, err := d.batchStatement(target, 100, 199)
		if err != nil {
			t.Fatalf("batchStatement(%v): %v", target, err)
		}
		if !strings.Contains(query, "BETWEEN ? AND ?") {
			t.Errorf("%v statement missing ID range", target)
		}
		if !strings.Contains(query, "et.to_date < DATE_SUB(NOW(), INTERVAL ? YEAR)") {
			t.Errorf("%v statement missing deactivation guard", target)
		}
		if !strings.Contains(query, "NOT EXISTS") {
			t.Errorf("%v statement missing invoice anti-join", target)
		}
		if args[0] != int64(100) || args[1] != int64(199) {
			t.Errorf("%v range args = %v", target, args[:2])
		}
	}
}

func TestBatchStatementPolymorphicType(t *testing.T) {
	d := testDeleter()

	query, args, err := d.batchStatement(TargetAddress, 1, 500)
	if err != nil {
		t.Fatalf("batchStatement: %v", err)
	}
	if !strings.Contains(query, "a.object_type_id = ?") {
		t.Error("address statement missing owner type predicate")
	}
	// start, end, type, years, type, years
	if len(args) != 6 {
		t.Fatalf("address args = %d, want 6", len(args))
	}
	if args[2] != int64(1) {
		t.Errorf("address type arg = %v, want 1", args[2])
	}
}

func TestBatchStatementTenant(t *testing.T) {
	d := testDeleter()

	query, args, err := d.batchStatement(TargetTenant, 1, 100)
	if err != nil {
		t.Fatalf("batchStatement: %v", err)
	}
	if !strings.Contains(query, "t.to_date IS NOT NULL") {
		t.Error("tenant statement must skip active tenancies")
	}
	if len(args) != 5 {
		t.Errorf("tenant args = %d, want 5", len(args))
	}
}

func TestBatchStatementContactAntiJoins(t *testing.T) {
	d := testDeleter()

	query, args, err := d.batchStatement(TargetContact, 1, 100)
	if err != nil {
		t.Fatalf("batchStatement: %v", err)
	}
	for _, table := range []string{"tenant", "invoice", "journal_entry", "note", "email"} {
		if !strings.Contains(query, "FROM "+table) {
			t.Errorf("contact statement missing %s anti-join", table)
		}
	}
	if n := strings.Count(query, "NOT EXISTS"); n != 5 {
		t.Errorf("contact statement has %d anti-joins, want 5", n)
	}
	if !strings.Contains(query, "c.last_updated_on < DATE_SUB(NOW(), INTERVAL ? YEAR)") {
		t.Error("contact statement missing contact-side staleness guard")
	}
	if len(args) != 11 {
		t.Errorf("contact args = %d, want 11", len(args))
	}
}

// A full run deletes tenant second to last, so no statement that executes
// after the tenant pass may require a surviving tenancy row.
func TestStatementsAfterTenantPassDoNotRequireTenancies(t *testing.T) {
	d := testDeleter()

	tenantPos := -1
	for i, target := range DeletionOrder() {
		if target == TargetTenant {
			tenantPos = i
		}
	}
	if tenantPos < 0 {
		t.Fatal("tenant missing from deletion order")
	}

	for i, target := range DeletionOrder() {
		if i <= tenantPos {
			continue
		}
		query, _, err := d.batchStatement(target, 1, 100)
		if err != nil {
			t.Fatalf("batchStatement(%v): %v", target, err)
		}
		if strings.Contains(query, "EXISTS (\n\t\tSELECT 1 FROM contact ec") ||
			strings.Contains(query, "et.to_date < DATE_SUB") ||
			strings.Contains(query, "t.to_date < DATE_SUB") {
			t.Errorf("%v runs after the tenant pass but requires an expired tenancy row", target)
		}
	}
}

func TestBatchStatementCommunityUnsupported(t *testing.T) {
	d := testDeleter()

	_, _, err := d.batchStatement(TargetCommunity, 1, 100)
	if err == nil {
		t.Fatal("community must not have a range-walk statement")
	}
	if !IsStructural(err) {
		t.Error("unsupported target should be a structural error")
	}
}
