package domain

// DeliveryStatus is the per-recipient progress of a message.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// AllowedFrom lists the statuses a transition to s may start from. The
// chain is monotone: sent -> delivered, sent|delivered -> read.
func (s DeliveryStatus) AllowedFrom() []DeliveryStatus {
	switch s {
	case StatusDelivered:
		return []DeliveryStatus{StatusSent}
	case StatusRead:
		return []DeliveryStatus{StatusSent, StatusDelivered}
	default:
		return nil
	}
}
