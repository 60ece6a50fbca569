package enums

// PaymentStatus tracks the deposit on a reservation. It only moves from
// pending to succeeded (deposit confirmation) or expired (hold lapsed).
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusExpired   PaymentStatus = "expired"
)

var paymentStatuses = set[PaymentStatus]{PaymentStatusPending, PaymentStatusSucceeded, PaymentStatusExpired}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.has(p) }

// Settled is true once the deposit can no longer change.
func (p PaymentStatus) Settled() bool {
	return p == PaymentStatusSucceeded || p == PaymentStatusExpired
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value)
}
