package enums

// NotificationType classifies in-app notification rows. Delivery channels
// (push/WhatsApp/email) live behind the notification topic and are not
// modeled here.
type NotificationType string

const (
	NotificationTypeVisitConfirmed     NotificationType = "visit_confirmed"
	NotificationTypeVisitDispute       NotificationType = "visit_dispute"
	NotificationTypeVisitEscalation    NotificationType = "visit_escalation"
	NotificationTypeVisitCaptured      NotificationType = "visit_captured"
	NotificationTypeInvoiceCreated     NotificationType = "invoice_created"
	NotificationTypeInvoicePaid        NotificationType = "invoice_paid"
	NotificationTypeInvoiceFailed      NotificationType = "invoice_failed"
	NotificationTypePayoutReleased     NotificationType = "payout_released"
	NotificationTypePayoutQueued       NotificationType = "payout_queued"
	NotificationTypeRescheduleRequest  NotificationType = "reschedule_request"
	NotificationTypeRescheduleWarning  NotificationType = "reschedule_warning"
	NotificationTypeRescheduleExpired  NotificationType = "reschedule_expired"
	NotificationTypeRescheduleAccepted NotificationType = "reschedule_accepted"
	NotificationTypeJobAutoCompleted   NotificationType = "job_auto_completed"
	NotificationTypeJobCompleted       NotificationType = "job_completed"
)

// String implements fmt.Stringer.
func (t NotificationType) String() string {
	return string(t)
}
