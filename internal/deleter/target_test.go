package deleter

import (
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		want    Target
		wantErr bool
	}{
		{"reading", TargetReading, false},
		{"email_attachment", TargetEmailAttachment, false},
		{"contact", TargetContact, false},
		{"community", TargetCommunity, false},
		{"deletion_log", 0, true},
		{"DROP TABLE contact", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTarget(%q) should fail", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget(%q): %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestTargetStringRoundTrip(t *testing.T) {
	for _, target := range DeletionOrder() {
		parsed, err := ParseTarget(target.String())
		if err != nil {
			t.Errorf("ParseTarget(%q): %v", target.String(), err)
			continue
		}
		if parsed != target {
			t.Errorf("round trip %v -> %q -> %v", target, target.String(), parsed)
		}
	}
}

// position asserts ordering constraints without pinning the exact sequence.
func position(t *testing.T, order []Target, target Target) int {
	t.Helper()
	for i, o := range order {
		if o == target {
			return i
		}
	}
	t.Fatalf("%v missing from deletion order", target)
	return -1
}

func TestDeletionOrderDependencies(t *testing.T) {
	order := DeletionOrder()

	if order[0] != TargetReading {
		t.Errorf("first target = %v, want reading", order[0])
	}
	if order[len(order)-1] != TargetContact {
		t.Errorf("last target = %v, want contact", order[len(order)-1])
	}

	// Children must come strictly before their parents.
	pairs := []struct{ child, parent Target }{
		{TargetEmailAttachment, TargetEmail},
		{TargetEmailPreview, TargetEmail},
		{TargetInvoiceDetail, TargetInvoice},
		{TargetTenant, TargetContact},
		{TargetEmail, TargetContact},
		{TargetInvoice, TargetContact},
		{TargetAddress, TargetContact},
		{TargetPhone, TargetContact},
		{TargetNote, TargetContact},
		{TargetBank, TargetContact},
		{TargetSubscription, TargetContact},
		{TargetContactBatch, TargetContact},
		{TargetContactLogicalUnit, TargetContact},
		{TargetPaymentProfile, TargetContact},
	}
	for _, p := range pairs {
		if position(t, order, p.child) >= position(t, order, p.parent) {
			t.Errorf("%v must be deleted before %v", p.child, p.parent)
		}
	}

	// Every account statement except the contact row proves eligibility
	// through surviving expired tenancy rows, so tenant must outlive them all.
	tenantPos := position(t, order, TargetTenant)
	for _, dependent := range []Target{
		TargetEmailAttachment, TargetEmailPreview, TargetEmail,
		TargetInvoiceDetail, TargetInvoice,
		TargetAddress, TargetPhone, TargetNote,
		TargetBank, TargetSubscription, TargetContactBatch,
		TargetContactLogicalUnit, TargetPaymentProfile,
	} {
		if position(t, order, dependent) >= tenantPos {
			t.Errorf("%v depends on tenant rows and must be deleted before tenant", dependent)
		}
	}

	// The cascade target never appears in the range-walk order.
	for _, o := range order {
		if o == TargetCommunity {
			t.Error("community must not appear in the range-walk order")
		}
	}
}

func TestPolymorphic(t *testing.T) {
	poly := []Target{
		TargetEmailAttachment, TargetEmailPreview, TargetEmail,
		TargetInvoiceDetail, TargetInvoice, TargetAddress, TargetPhone, TargetNote,
	}
	direct := []Target{
		TargetReading, TargetTenant, TargetBank, TargetSubscription,
		TargetContactBatch, TargetContactLogicalUnit, TargetPaymentProfile,
		TargetContact, TargetCommunity,
	}
	for _, target := range poly {
		if !target.Polymorphic() {
			t.Errorf("%v should be polymorphic", target)
		}
	}
	for _, target := range direct {
		if target.Polymorphic() {
			t.Errorf("%v should not be polymorphic", target)
		}
	}
}
