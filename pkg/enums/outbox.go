package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateGroupBuyDeal OutboxAggregateType = "group_buy_deal"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateGroupBuyDeal,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event published through the outbox.
type OutboxEventType string

const (
	EventGroupBuyDealCompleted OutboxEventType = "group_buy_deal_completed"
	EventGroupBuyDealCancelled OutboxEventType = "group_buy_deal_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventGroupBuyDealCompleted,
	EventGroupBuyDealCancelled,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// DealEventType maps a terminal deal status to the event announcing it.
func DealEventType(status DealStatus) (OutboxEventType, error) {
	switch status {
	case DealStatusCompleted:
		return EventGroupBuyDealCompleted, nil
	case DealStatusCancelled:
		return EventGroupBuyDealCancelled, nil
	default:
		return "", fmt.Errorf("no event for deal status %q", status)
	}
}
