package models

import (
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
)

// Result is the per-item outcome of add, cancel and edit. A soft failure has
// Success=false and every other field nil.
type Result struct {
	Success       bool             `json:"success"`
	ReceiptNumber *string          `json:"receipt_number"`
	Postfix       *string          `json:"postfix"`
	AmountRecord  *decimal.Decimal `json:"amount_record"`
	AmountTotal   *decimal.Decimal `json:"amount_total"`
}

// Failed is the uniform soft-failure result.
func Failed() Result {
	return Result{}
}

// Succeeded builds the result for an appended entry.
func Succeeded(entry *Entry, postfix string) Result {
	receipt := entry.ReceiptNumber
	record := entry.AmountRecord
	total := entry.AmountTotal
	return Result{
		Success:       true,
		ReceiptNumber: &receipt,
		Postfix:       &postfix,
		AmountRecord:  &record,
		AmountTotal:   &total,
	}
}

// LogValue implements slog.LogValuer. Nil fields are omitted.
func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Bool("success", r.Success)}
	if r.ReceiptNumber != nil {
		attrs = append(attrs, slog.String("receipt_number", *r.ReceiptNumber))
	}
	if r.Postfix != nil {
		attrs = append(attrs, slog.String("postfix", *r.Postfix))
	}
	if r.AmountRecord != nil {
		attrs = append(attrs, slog.String("amount_record", r.AmountRecord.StringFixed(2)))
	}
	if r.AmountTotal != nil {
		attrs = append(attrs, slog.String("amount_total", r.AmountTotal.StringFixed(2)))
	}
	return slog.GroupValue(attrs...)
}

// Results logs a batch outcome as a group keyed by item index.
type Results []Result

// LogValue implements slog.LogValuer.
func (rs Results) LogValue() slog.Value {
	attrs := make([]slog.Attr, len(rs))
	for i, r := range rs {
		attrs[i] = slog.Any(strconv.Itoa(i), r)
	}
	return slog.GroupValue(attrs...)
}
