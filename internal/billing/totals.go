package billing

import "github.com/shopspring/decimal"

// InvoiceTotals derives tax and total from an invoice's stored amounts:
//
//	tax   = (subtotal - discount) * taxRate / 100, rounded to 2 places
//	total = subtotal - discount + tax
//
// Negative subtotals or discounts exceeding the subtotal are caller
// preconditions; this function computes exactly what it is given.
func InvoiceTotals(subtotal, discount, taxRate decimal.Decimal) (tax, total decimal.Decimal) {
	taxable := subtotal.Sub(discount)
	tax = taxable.Mul(taxRate).Div(oneHundred).Round(2)
	total = taxable.Add(tax)
	return tax, total
}
