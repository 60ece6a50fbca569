package enums

// NotificationType is the notification_type column. Hold and listing events
// go to the owner; confirmation, cancellation and expiry go to the renter.
type NotificationType string

const (
	NotificationTypeHoldRequested        NotificationType = "hold_requested"
	NotificationTypeReservationConfirmed NotificationType = "reservation_confirmed"
	NotificationTypeReservationCancelled NotificationType = "reservation_cancelled"
	NotificationTypeHoldExpired          NotificationType = "hold_expired"
	NotificationTypeListingFull          NotificationType = "listing_full"
)

var notificationTypes = set[NotificationType]{
	NotificationTypeHoldRequested,
	NotificationTypeReservationConfirmed,
	NotificationTypeReservationCancelled,
	NotificationTypeHoldExpired,
	NotificationTypeListingFull,
}

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return notificationTypes.parse("notification type", value)
}
