// Package transport delivers inbound Telegram updates to a single
// consumer regardless of how they arrived. The webhook receiver and the
// long poller both feed the same bounded FIFO queue; a full queue blocks
// the producer (backpressure) rather than dropping updates.
package transport

import (
	"time"

	"github.com/dkozlov/specbot/internal/telegram"
)

// Delivery tags an update with the transport it arrived through.
// Diagnostics only: downstream handling is identical for both.
type Delivery string

const (
	// DeliveryWebhook marks updates pushed by the Bot API over HTTP.
	DeliveryWebhook Delivery = "webhook"
	// DeliveryPolling marks updates fetched via getUpdates.
	DeliveryPolling Delivery = "polling"
)

// Update is one inbound event together with its delivery metadata.
type Update struct {
	Delivery   Delivery
	ReceivedAt time.Time
	Payload    telegram.Update
}
