package enums

import "fmt"

// CustomerStatus captures where a restaurant customer sits in its lifecycle.
type CustomerStatus string

const (
	CustomerStatusOnboarding CustomerStatus = "onboarding"
	CustomerStatusActive     CustomerStatus = "active"
	CustomerStatusAtRisk     CustomerStatus = "at_risk"
	CustomerStatusChurned    CustomerStatus = "churned"
)

var validCustomerStatuses = []CustomerStatus{
	CustomerStatusOnboarding,
	CustomerStatusActive,
	CustomerStatusAtRisk,
	CustomerStatusChurned,
}

// String implements fmt.Stringer.
func (s CustomerStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s CustomerStatus) IsValid() bool {
	for _, candidate := range validCustomerStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCustomerStatus converts raw input into a CustomerStatus.
func ParseCustomerStatus(value string) (CustomerStatus, error) {
	for _, candidate := range validCustomerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid customer status %q", value)
}
