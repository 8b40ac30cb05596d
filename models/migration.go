package models

import "gorm.io/gorm"

func MigrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Business{},
		&Client{},
		&Vendor{},
		&Item{},
		&BankAccount{},
		&PaymentMode{},
		&TaxRate{},
		&TransactionCounter{},
		&IdempotencyKey{},
		&Quotation{},
		&QuotationDetail{},
		&SalesInvoice{},
		&SalesInvoiceDetail{},
		&PurchaseInvoice{},
		&PurchaseInvoiceDetail{},
		&Receipt{},
		&Payment{},
	)
}
