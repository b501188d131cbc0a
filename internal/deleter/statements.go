package deleter

import "fmt"

// accountEligibleWhere re-derives account eligibility inside every
// account-related DELETE: the owning contact must be deactivated for the
// full retention window with no recent invoicing. The cutoff only bounds
// the ID range; this clause guards against report staleness.
//
// %[1]s is the owner ID column of the enclosing statement.
// Placeholder args: years, contact type ID, years.
const accountEligibleWhere = `EXISTS (
		SELECT 1 FROM contact ec
		JOIN tenant et ON et.contact_id = ec.contact_id
		WHERE ec.contact_id = %[1]s
		AND et.to_date IS NOT NULL
		AND et.to_date < DATE_SUB(NOW(), INTERVAL ? YEAR)
		AND NOT EXISTS (
			SELECT 1 FROM invoice ei
			WHERE ei.object_id = ec.contact_id AND ei.object_type_id = ?
			AND ei.invoice_date >= DATE_SUB(NOW(), INTERVAL ? YEAR)))`

// Readings are excluded from deletion while any billing-usage row still
// references them, regardless of age.
const readingBatchSQL = `
	DELETE r FROM reading r
	LEFT JOIN sm_usage su ON su.reading_id = r.reading_id
	WHERE r.reading_id BETWEEN ? AND ?
	AND su.reading_id IS NULL
	AND r.date_imported < DATE_SUB(NOW(), INTERVAL ? YEAR)`

var emailAttachmentBatchSQL = fmt.Sprintf(`
	DELETE ea FROM email_attachment ea
	JOIN email e ON e.email_id = ea.email_id
	WHERE e.object_id BETWEEN ? AND ?
	AND e.object_type_id = ?
	AND `+accountEligibleWhere, "e.object_id")

var emailPreviewBatchSQL = fmt.Sprintf(`
	DELETE ep FROM email_preview ep
	JOIN email e ON e.email_id = ep.email_id
	WHERE e.object_id BETWEEN ? AND ?
	AND e.object_type_id = ?
	AND `+accountEligibleWhere, "e.object_id")

var emailBatchSQL = fmt.Sprintf(`
	DELETE e FROM email e
	WHERE e.object_id BETWEEN ? AND ?
	AND e.object_type_id = ?
	AND `+accountEligibleWhere, "e.object_id")

var invoiceDetailBatchSQL = fmt.Sprintf(`
	DELETE idt FROM invoice_detail idt
	JOIN invoice inv ON inv.invoice_id = idt.invoice_id
	WHERE inv.object_id BETWEEN ? AND ?
	AND inv.object_type_id = ?
	AND `+accountEligibleWhere, "inv.object_id")

var invoiceBatchSQL = fmt.Sprintf(`
	DELETE inv FROM invoice inv
	WHERE inv.object_id BETWEEN ? AND ?
	AND inv.object_type_id = ?
	AND `+accountEligibleWhere, "inv.object_id")

// Tenant rows carry the deactivation date themselves, so their predicate is
// inlined rather than routed through the eligibility fragment.
const tenantBatchSQL = `
	DELETE t FROM tenant t
	WHERE t.contact_id BETWEEN ? AND ?
	AND t.to_date IS NOT NULL
	AND t.to_date < DATE_SUB(NOW(), INTERVAL ? YEAR)
	AND NOT EXISTS (
		SELECT 1 FROM invoice ei
		WHERE ei.object_id = t.contact_id AND ei.object_type_id = ?
		AND ei.invoice_date >= DATE_SUB(NOW(), INTERVAL ? YEAR))`

var addressBatchSQL = fmt.Sprintf(`
	DELETE a FROM address a
	WHERE a.object_id BETWEEN ? AND ?
	AND a.object_type_id = ?
	AND `+accountEligibleWhere, "a.object_id")

var phoneBatchSQL = fmt.Sprintf(`
	DELETE p FROM phone p
	WHERE p.object_id BETWEEN ? AND ?
	AND p.object_type_id = ?
	AND `+accountEligibleWhere, "p.object_id")

var noteBatchSQL = fmt.Sprintf(`
	DELETE n FROM note n
	WHERE n.object_id BETWEEN ? AND ?
	AND n.object_type_id = ?
	AND `+accountEligibleWhere, "n.object_id")

var bankBatchSQL = fmt.Sprintf(`
	DELETE b FROM bank b
	WHERE b.contact_id BETWEEN ? AND ?
	AND `+accountEligibleWhere, "b.contact_id")

var subscriptionBatchSQL = fmt.Sprintf(`
	DELETE s FROM subscription s
	WHERE s.contact_id BETWEEN ? AND ?
	AND `+accountEligibleWhere, "s.contact_id")

var contactBatchLinkSQL = fmt.Sprintf(`
	DELETE cb FROM contact_batch cb
	WHERE cb.contact_id BETWEEN ? AND ?
	AND `+accountEligibleWhere, "cb.contact_id")

var contactLogicalUnitBatchSQL = fmt.Sprintf(`
	DELETE clu FROM contact_logical_unit clu
	WHERE clu.contact_id BETWEEN ? AND ?
	AND `+accountEligibleWhere, "clu.contact_id")

var paymentProfileBatchSQL = fmt.Sprintf(`
	DELETE pp FROM payment_profile pp
	WHERE pp.contact_id BETWEEN ? AND ?
	AND `+accountEligibleWhere, "pp.contact_id")

// The contact row goes last, after its tenancies are gone, so its predicate
// cannot lean on tenant rows the run already deleted. Eligibility is proved
// contact-side: stale for the full window, no tenancy row left (the tenant
// pass keeps every non-eligible one), and the four-way anti-join re-checked.
const contactRowBatchSQL = `
	DELETE c FROM contact c
	WHERE c.contact_id BETWEEN ? AND ?
	AND c.last_updated_on < DATE_SUB(NOW(), INTERVAL ? YEAR)
	AND NOT EXISTS (
		SELECT 1 FROM tenant t
		WHERE t.contact_id = c.contact_id)
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

// batchStatement maps a target to its statement and argument list for one
// [start, end] sub-range. Callers must have resolved the contact type ID
// before requesting any account-related statement.
func (d *Deleter) batchStatement(t Target, startID, endID int64) (string, []interface{}, error) {
	eligible := func() []interface{} {
		return []interface{}{int64(d.accountYears), d.contactTypeID, int64(d.accountYears)}
	}
	poly := func(query string) (string, []interface{}, error) {
		args := append([]interface{}{startID, endID, d.contactTypeID}, eligible()...)
		return query, args, nil
	}
	direct := func(query string) (string, []interface{}, error) {
		args := append([]interface{}{startID, endID}, eligible()...)
		return query, args, nil
	}

	switch t {
	case TargetReading:
		return readingBatchSQL, []interface{}{startID, endID, int64(d.readingYears)}, nil
	case TargetEmailAttachment:
		return poly(emailAttachmentBatchSQL)
	case TargetEmailPreview:
		return poly(emailPreviewBatchSQL)
	case TargetEmail:
		return poly(emailBatchSQL)
	case TargetInvoiceDetail:
		return poly(invoiceDetailBatchSQL)
	case TargetInvoice:
		return poly(invoiceBatchSQL)
	case TargetTenant:
		return tenantBatchSQL, []interface{}{
			startID, endID, int64(d.accountYears), d.contactTypeID, int64(d.accountYears)}, nil
	case TargetAddress:
		return poly(addressBatchSQL)
	case TargetPhone:
		return poly(phoneBatchSQL)
	case TargetNote:
		return poly(noteBatchSQL)
	case TargetBank:
		return direct(bankBatchSQL)
	case TargetSubscription:
		return direct(subscriptionBatchSQL)
	case TargetContactBatch:
		return direct(contactBatchLinkSQL)
	case TargetContactLogicalUnit:
		return direct(contactLogicalUnitBatchSQL)
	case TargetPaymentProfile:
		return direct(paymentProfileBatchSQL)
	case TargetContact:
		y := int64(d.accountYears)
		return contactRowBatchSQL, []interface{}{
			startID, endID, y,
			d.contactTypeID, y,
			d.contactTypeID, y,
			d.contactTypeID, y,
			d.contactTypeID, y}, nil
	default:
		return "", nil, structural(fmt.Errorf("no batch statement for target %s", t))
	}
}
