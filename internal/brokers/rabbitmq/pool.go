package rabbitmq

import (
	"sync"
	"time"

	"github.com/streadway/amqp"

	"stripe-webhook-router/internal/common/errors"
)

// Channel is the subset of *amqp.Channel the broker uses
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Pool hands out channels on pooled connections
type Pool interface {
	Channel() (Channel, func(), error)
	Close()
}

type connectionPool struct {
	url         string
	connections chan *amqp.Connection
	mu          sync.RWMutex
	closed      bool
}

func newConnectionPool(url string, size int) (*connectionPool, error) {
	pool := &connectionPool{
		url:         url,
		connections: make(chan *amqp.Connection, size),
	}
	for i := 0; i < size; i++ {
		conn, err := amqp.Dial(url)
		if err != nil {
			pool.Close()
			return nil, errors.ConnectionError("failed to create initial RabbitMQ connection", err)
		}
		pool.connections <- conn
	}
	return pool, nil
}

func (p *connectionPool) get() (*amqp.Connection, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, errors.ConnectionError("connection pool is closed", nil)
	}

	select {
	case conn := <-p.connections:
		if conn.IsClosed() {
			return amqp.Dial(p.url)
		}
		return conn, nil
	case <-time.After(5 * time.Second):
		return nil, errors.TimeoutError("waiting for RabbitMQ connection")
	}
}

func (p *connectionPool) put(conn *amqp.Connection) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || conn.IsClosed() {
		conn.Close()
		return
	}
	select {
	case p.connections <- conn:
	default:
		conn.Close()
	}
}

// Channel opens a channel; release closes it and returns the connection
func (p *connectionPool) Channel() (Channel, func(), error) {
	conn, err := p.get()
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		p.put(conn)
		return nil, nil, errors.ConnectionError("failed to open RabbitMQ channel", err)
	}
	release := func() {
		ch.Close()
		p.put(conn)
	}
	return ch, release, nil
}

func (p *connectionPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.connections)
	for conn := range p.connections {
		conn.Close()
	}
}
