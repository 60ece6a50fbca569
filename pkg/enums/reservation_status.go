package enums

// ReservationStatus is the reservation_status column. Pending is the only
// non-terminal state; it moves to confirmed, cancelled or expired once.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

var reservationStatuses = set[ReservationStatus]{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusCancelled,
	ReservationStatusExpired,
}

func (s ReservationStatus) String() string { return string(s) }

func (s ReservationStatus) IsValid() bool { return reservationStatuses.has(s) }

func (s ReservationStatus) IsTerminal() bool {
	return s.IsValid() && s != ReservationStatusPending
}

func ParseReservationStatus(value string) (ReservationStatus, error) {
	return reservationStatuses.parse("reservation status", value)
}

// ReservationStatusValues lists the accepted values for error messages.
func ReservationStatusValues() string {
	return reservationStatuses.String()
}

// ConfirmationSource records which trigger confirmed a reservation.
type ConfirmationSource string

const (
	ConfirmationSourceOwnerApproval  ConfirmationSource = "owner_approval"
	ConfirmationSourceDepositPayment ConfirmationSource = "deposit_payment"
)

var confirmationSources = set[ConfirmationSource]{ConfirmationSourceOwnerApproval, ConfirmationSourceDepositPayment}

func (c ConfirmationSource) String() string { return string(c) }

func (c ConfirmationSource) IsValid() bool { return confirmationSources.has(c) }
