package enums

import "fmt"

// InvoiceType distinguishes recurring subscription invoices from ad-hoc ones.
type InvoiceType string

const (
	InvoiceTypeSubscription InvoiceType = "subscription"
	InvoiceTypeOneTime      InvoiceType = "one_time"
	InvoiceTypeCustom       InvoiceType = "custom"
)

var validInvoiceTypes = []InvoiceType{
	InvoiceTypeSubscription,
	InvoiceTypeOneTime,
	InvoiceTypeCustom,
}

// String implements fmt.Stringer.
func (t InvoiceType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t InvoiceType) IsValid() bool {
	for _, candidate := range validInvoiceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInvoiceType converts raw input into an InvoiceType.
func ParseInvoiceType(value string) (InvoiceType, error) {
	for _, candidate := range validInvoiceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice type %q", value)
}
