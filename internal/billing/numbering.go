package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const sequenceWidth = 4

// InvoiceNumberPrefix returns the per-month prefix INV-YYYYMM for the given
// creation time.
func InvoiceNumberPrefix(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("INV-%04d%02d", t.Year(), int(t.Month()))
}

// FormatInvoiceNumber renders a full invoice number from its prefix and
// sequence, zero-padding the sequence to four digits.
func FormatInvoiceNumber(prefix string, sequence int) string {
	return fmt.Sprintf("%s-%0*d", prefix, sequenceWidth, sequence)
}

// SequenceFromNumber parses the trailing sequence out of an invoice number.
func SequenceFromNumber(number string) (int, error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("malformed invoice number %q", number)
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed invoice number %q: %w", number, err)
	}
	return seq, nil
}

// NextInvoiceNumber returns the number following highest within the month
// identified by prefix, or the month's first number when highest is empty.
func NextInvoiceNumber(prefix, highest string) (string, error) {
	if highest == "" {
		return FormatInvoiceNumber(prefix, 1), nil
	}
	seq, err := SequenceFromNumber(highest)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(prefix, seq+1), nil
}
