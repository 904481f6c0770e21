package messaging

import "errors"

// Acknowledger settles a delivery on the transport it arrived from.
// *amqp091.Channel and amqp091.Delivery.Acknowledger both satisfy it.
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Reject(tag uint64, requeue bool) error
}

// ErrNoAcknowledger is returned when a delivery was built without a transport.
var ErrNoAcknowledger = errors.New("delivery has no acknowledger")

// Delivery is a message handed out by a broker subscription.
// It is a value: the tag it was delivered with is fixed at construction
// and every settlement uses exactly that tag.
type Delivery struct {
	Tag         uint64
	Body        []byte
	ContentType string
	RoutingKey  string
	Redelivered bool

	acker Acknowledger
}

// NewDelivery binds a transport delivery tag to its acknowledger.
func NewDelivery(tag uint64, body []byte, contentType, routingKey string, redelivered bool, acker Acknowledger) Delivery {
	return Delivery{
		Tag:         tag,
		Body:        body,
		ContentType: contentType,
		RoutingKey:  routingKey,
		Redelivered: redelivered,
		acker:       acker,
	}
}

// Ack acknowledges this delivery only (never cumulative).
func (d Delivery) Ack() error {
	if d.acker == nil {
		return ErrNoAcknowledger
	}
	return d.acker.Ack(d.Tag, false)
}

// Reject discards this delivery without requeueing it. When the queue has a
// dead-letter exchange the broker routes the message there instead.
func (d Delivery) Reject() error {
	if d.acker == nil {
		return ErrNoAcknowledger
	}
	return d.acker.Reject(d.Tag, false)
}
