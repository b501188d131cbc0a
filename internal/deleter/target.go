package deleter

import (
	"fmt"
)

// Target is the closed enumeration of supported delete targets. Each maps to
// a statically known parameterized statement; table names are never
// interpolated from operator input.
type Target int

const (
	TargetReading Target = iota
	TargetEmailAttachment
	TargetEmailPreview
	TargetEmail
	TargetInvoiceDetail
	TargetInvoice
	TargetAddress
	TargetPhone
	TargetNote
	TargetBank
	TargetSubscription
	TargetContactBatch
	TargetContactLogicalUnit
	TargetPaymentProfile
	TargetTenant
	TargetContact

	// TargetCommunity is deleted by owner cascade rather than ID-range
	// walking, so it is absent from DeletionOrder.
	TargetCommunity
)

var targetNames = map[Target]string{
	TargetReading:            "reading",
	TargetEmailAttachment:    "email_attachment",
	TargetEmailPreview:       "email_preview",
	TargetEmail:              "email",
	TargetInvoiceDetail:      "invoice_detail",
	TargetInvoice:            "invoice",
	TargetAddress:            "address",
	TargetPhone:              "phone",
	TargetNote:               "note",
	TargetBank:               "bank",
	TargetSubscription:       "subscription",
	TargetContactBatch:       "contact_batch",
	TargetContactLogicalUnit: "contact_logical_unit",
	TargetPaymentProfile:     "payment_profile",
	TargetTenant:             "tenant",
	TargetContact:            "contact",
	TargetCommunity:          "community",
}

// String returns the table name (or "community" for the cascade target).
func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// ParseTarget resolves an operator-supplied table name.
func ParseTarget(name string) (Target, error) {
	for t, n := range targetNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unsupported table %q", name)
}

// DeletionOrder is the fixed topological order for full runs: the
// independent reading table first, then account-related tables strictly
// child-before-parent, with the contact row last. Tenant comes second to
// last: every earlier account statement proves eligibility through the
// contact's expired tenancy rows, so those rows must survive until all the
// dependent tables are drained.
func DeletionOrder() []Target {
	return []Target{
		TargetReading,
		TargetEmailAttachment,
		TargetEmailPreview,
		TargetEmail,
		TargetInvoiceDetail,
		TargetInvoice,
		TargetAddress,
		TargetPhone,
		TargetNote,
		TargetBank,
		TargetSubscription,
		TargetContactBatch,
		TargetContactLogicalUnit,
		TargetPaymentProfile,
		TargetTenant,
		TargetContact,
	}
}

// Polymorphic reports whether the target's rows reference their owner via
// the (object_id, object_type_id) pair.
func (t Target) Polymorphic() bool {
	switch t {
	case TargetEmailAttachment, TargetEmailPreview, TargetEmail,
		TargetInvoiceDetail, TargetInvoice, TargetAddress, TargetPhone, TargetNote:
		return true
	}
	return false
}
