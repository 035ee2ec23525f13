package broker

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is the part of *amqp.Connection the client uses.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Channel is the part of *amqp.Channel the client uses. *amqp.Channel
// satisfies it as is.
type Channel interface {
	Confirm(noWait bool) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

type Dialer func(url string) (Connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	return c.Connection.Channel()
}

// AMQPDialer dials RabbitMQ with a bounded TCP dial so a dead host cannot
// stall the supervisor.
func AMQPDialer(timeout time.Duration) Dialer {
	return func(url string) (Connection, error) {
		props := amqp.NewConnectionProperties()
		props.SetClientConnectionName("merchant-backend")
		conn, err := amqp.DialConfig(url, amqp.Config{
			Dial:       amqp.DefaultDial(timeout),
			Properties: props,
		})
		if err != nil {
			return nil, err
		}
		return &amqpConnection{Connection: conn}, nil
	}
}
