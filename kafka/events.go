package kafka

import "time"

// ProductDeletedEvent represents a listing removal event
type ProductDeletedEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	DeletedBy string    `json:"deleted_by"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypeProductDeleted = "product.deleted"
)

// Kafka topics
const (
	TopicProductDeleted = "product-deleted"
)
