package lifecycle

import "github.com/vaidashi/laundry-order-api/internal/models"

// TimelineTemplate is the customer-facing copy for entering a status
type TimelineTemplate struct {
	Title       string
	Description string
	Icon        string
}

var templates = map[models.OrderStatus]TimelineTemplate{
	models.StatusPending:         {"Order Placed", "Your order has been placed and is waiting for the laundry to confirm", "receipt"},
	models.StatusAccepted:        {"Order Accepted", "The laundry has accepted your order", "check-circle"},
	models.StatusRejected:        {"Order Rejected", "The laundry could not take this order", "x-circle"},
	models.StatusPickupScheduled: {"Pickup Scheduled", "A rider has been scheduled to collect your clothes", "calendar"},
	models.StatusPickedUp:        {"Picked Up", "Your clothes have been collected", "truck"},
	models.StatusProcessing:      {"Processing", "Your clothes are being cleaned", "loader"},
	models.StatusReady:           {"Ready", "Your order is ready", "package"},
	models.StatusOutForDelivery:  {"Out for Delivery", "Your order is on its way", "navigation"},
	models.StatusDelivered:       {"Delivered", "Your order has been delivered", "home"},
	models.StatusCompleted:       {"Completed", "Order completed and payment received", "award"},
	models.StatusCancelled:       {"Order Cancelled", "This order has been cancelled", "slash"},
}

// TimelineFor returns the copy for a status. Every status has one.
func TimelineFor(status models.OrderStatus) TimelineTemplate {
	if t, ok := templates[status]; ok {
		return t
	}
	return TimelineTemplate{Title: string(status), Description: "Order status updated", Icon: "info"}
}
