package payment

import "fmt"

// Method is how a customer settles a booking.
type Method string

const (
	MethodVNPay  Method = "vnpay"
	MethodMoMo   Method = "momo"
	MethodStripe Method = "stripe"
	MethodCash   Method = "cash"
)

var knownMethods = map[Method]struct{}{
	MethodVNPay:  {},
	MethodMoMo:   {},
	MethodStripe: {},
	MethodCash:   {},
}

// IsValid returns true if the method belongs to the closed enumeration.
func (m Method) IsValid() bool {
	_, ok := knownMethods[m]
	return ok
}

// IsGateway returns true if the method redirects the customer to a third-party processor.
func (m Method) IsGateway() bool {
	return m == MethodVNPay || m == MethodMoMo || m == MethodStripe
}

// IsIntegrated returns false for methods that are accepted on bookings but cannot be paid online yet.
func (m Method) IsIntegrated() bool {
	return m != MethodMoMo
}

func (m Method) String() string { return string(m) }

// ParseMethod converts a string to a Method, returning an error if unknown.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid payment method: %s", s)
	}
	return m, nil
}
