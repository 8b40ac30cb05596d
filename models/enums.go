package models

// DocumentType keys the sequence counter table. One counter row exists
// per (business, document type, financial year).
type DocumentType string

const (
	DocumentTypeQuotation       DocumentType = "quotation"
	DocumentTypeSalesInvoice    DocumentType = "invoice"
	DocumentTypePurchaseInvoice DocumentType = "bill"
	DocumentTypeReceipt         DocumentType = "receipt"
	DocumentTypePayment         DocumentType = "payment"
)

// default display prefixes per document type
const (
	PrefixQuotation       = "QT"
	PrefixSalesInvoice    = "INV"
	PrefixPurchaseInvoice = "BILL"
	PrefixReceipt         = "RCT"
	PrefixPayment         = "PAY"
)

type SalesInvoiceStatus string

const (
	SalesInvoiceStatusDraft       SalesInvoiceStatus = "Draft"
	SalesInvoiceStatusConfirmed   SalesInvoiceStatus = "Confirmed"
	SalesInvoiceStatusVoid        SalesInvoiceStatus = "Void"
	SalesInvoiceStatusPartialPaid SalesInvoiceStatus = "Partial Paid"
	SalesInvoiceStatusPaid        SalesInvoiceStatus = "Paid"
)

type PurchaseInvoiceStatus string

const (
	PurchaseInvoiceStatusDraft       PurchaseInvoiceStatus = "Draft"
	PurchaseInvoiceStatusConfirmed   PurchaseInvoiceStatus = "Confirmed"
	PurchaseInvoiceStatusVoid        PurchaseInvoiceStatus = "Void"
	PurchaseInvoiceStatusPartialPaid PurchaseInvoiceStatus = "Partial Paid"
	PurchaseInvoiceStatusPaid        PurchaseInvoiceStatus = "Paid"
)

type QuotationStatus string

const (
	QuotationStatusDraft    QuotationStatus = "Draft"
	QuotationStatusSent     QuotationStatus = "Sent"
	QuotationStatusAccepted QuotationStatus = "Accepted"
	QuotationStatusDeclined QuotationStatus = "Declined"
)

// PaymentType distinguishes how a receipt/payment relates to an invoice.
// Advance receipts are not tied to an invoice at creation; their remaining
// balance is consumed by later settlements.
type PaymentType string

const (
	PaymentTypeFull    PaymentType = "Full"
	PaymentTypePartial PaymentType = "Partial"
	PaymentTypeAdvance PaymentType = "Advance"
)

// TaxKind is the jurisdiction split of a GST rate.
type TaxKind string

const (
	TaxKindCGST TaxKind = "CGST"
	TaxKindSGST TaxKind = "SGST"
	TaxKindIGST TaxKind = "IGST"
)

type DiscountType string

const (
	DiscountTypePercent DiscountType = "P"
	DiscountTypeAmount  DiscountType = "A"
)
