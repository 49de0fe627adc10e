package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderDelivered = "order.delivered"
	TopicOrderDeleted   = "order.deleted"
	TopicProductChanged = "product.changed"
)

// DefaultTopics returns the canonical list of published topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderDelivered,
		TopicOrderDeleted,
		TopicProductChanged,
	}
}
