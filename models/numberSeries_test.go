package models_test

import (
	"sync"
	"testing"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/models"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
)

func TestFinancialYearLabel(t *testing.T) {
	cases := []struct {
		date time.Time
		want int
	}{
		{time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), 2026},
		{time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC), 2025},
		{time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC), 2026},
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 2026},
		{time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), 2026},
	}
	for _, c := range cases {
		if got := models.FinancialYearLabel(c.date); got != c.want {
			t.Fatalf("FinancialYearLabel(%s) = %d; want %d", c.date.Format("2006-01-02"), got, c.want)
		}
	}
}

func TestFormatDocumentNumber(t *testing.T) {
	got, err := models.FormatDocumentNumber("PAY", 2025, 7)
	if err != nil {
		t.Fatalf("FormatDocumentNumber: %v", err)
	}
	if got != "PAY-2025-007" {
		t.Fatalf("expected PAY-2025-007; got %s", got)
	}

	// padding never truncates
	got, err = models.FormatDocumentNumber("INV", 2026, 12345)
	if err != nil {
		t.Fatalf("FormatDocumentNumber: %v", err)
	}
	if got != "INV-2026-12345" {
		t.Fatalf("expected INV-2026-12345; got %s", got)
	}
}

func TestFormatDocumentNumberRejectsNonPositiveSequence(t *testing.T) {
	for _, seq := range []int64{0, -3} {
		_, err := models.FormatDocumentNumber("INV", 2026, seq)
		if err == nil {
			t.Fatalf("expected error for sequence %d", seq)
		}
		if !utils.IsKind(err, utils.ErrorKindInvalidSequence) {
			t.Fatalf("expected InvalidSequence; got %v", err)
		}
	}
}

func TestNextNumberSequentialAndPeek(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Numbering Co")

	peek, err := models.PeekNextNumber(ctx, models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice)
	if err != nil {
		t.Fatalf("PeekNextNumber: %v", err)
	}

	first, err := models.NextNumber(ctx, models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice)
	if err != nil {
		t.Fatalf("NextNumber: %v", err)
	}
	if first != peek {
		t.Fatalf("peek %s then next %s; peek must not consume", peek, first)
	}

	// peeking repeatedly does not advance the counter
	for i := 0; i < 3; i++ {
		p, err := models.PeekNextNumber(ctx, models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice)
		if err != nil {
			t.Fatalf("PeekNextNumber: %v", err)
		}
		if p == first {
			t.Fatalf("peek returned already-allocated number %s", p)
		}
	}

	second, err := models.NextNumber(ctx, models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice)
	if err != nil {
		t.Fatalf("NextNumber: %v", err)
	}
	if second == first {
		t.Fatalf("allocated duplicate number %s", second)
	}

	// counters are independent per document type
	receiptNo, err := models.NextNumber(ctx, models.DocumentTypeReceipt, models.PrefixReceipt)
	if err != nil {
		t.Fatalf("NextNumber(receipt): %v", err)
	}
	if receiptNo[len(receiptNo)-3:] != "001" {
		t.Fatalf("receipt counter should start at 001; got %s", receiptNo)
	}
}

func TestNextNumberFinancialYearRollover(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Rollover Co")

	march := time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)
	april := time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)

	// two allocations inside the closing year
	for i, want := range []string{"INV-2026-001", "INV-2026-002"} {
		got, err := models.NextNumberAt(ctx, models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice, march)
		if err != nil {
			t.Fatalf("NextNumberAt(march #%d): %v", i+1, err)
		}
		if got != want {
			t.Fatalf("expected %s; got %s", want, got)
		}
	}

	// crossing April resets the sequence to 1 under the new label
	peek, err := models.PeekNextNumberAt(ctx, models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice, april)
	if err != nil {
		t.Fatalf("PeekNextNumberAt(april): %v", err)
	}
	if peek != "INV-2027-001" {
		t.Fatalf("expected peek INV-2027-001 after rollover; got %s", peek)
	}

	got, err := models.NextNumberAt(ctx, models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice, april)
	if err != nil {
		t.Fatalf("NextNumberAt(april): %v", err)
	}
	if got != "INV-2027-001" {
		t.Fatalf("expected INV-2027-001 after rollover; got %s", got)
	}

	// the reset happens exactly once
	got, err = models.NextNumberAt(ctx, models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice, april)
	if err != nil {
		t.Fatalf("NextNumberAt(april #2): %v", err)
	}
	if got != "INV-2027-002" {
		t.Fatalf("expected INV-2027-002; got %s", got)
	}
}

func TestNextNumberConcurrentAllocationsAreUnique(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Concurrent Numbering Co")

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan string, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := models.NextNumber(ctx, models.DocumentTypeQuotation, models.PrefixQuotation)
			if err != nil {
				errs <- err
				return
			}
			results <- number
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("NextNumber: %v", err)
	}

	seen := map[string]bool{}
	for number := range results {
		if seen[number] {
			t.Fatalf("duplicate number allocated: %s", number)
		}
		seen[number] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d unique numbers; got %d", workers, len(seen))
	}
}
