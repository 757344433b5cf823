package mq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"FareWatch/config"
)

var (
	conn   *amqp.Connection
	connMu sync.Mutex
)

func Init() error {
	connMu.Lock()
	defer connMu.Unlock()

	if conn != nil && !conn.IsClosed() {
		return nil
	}

	url := config.Cfg.GetRabbitMQURL()
	c, err := amqp.Dial(url)
	if err != nil {
		return err
	}

	conn = c
	return nil
}

func Connection() *amqp.Connection {
	connMu.Lock()
	defer connMu.Unlock()
	return conn
}

// DeclareQueue 声明一个持久化队列，幂等。
func DeclareQueue(name string) error {
	c := Connection()
	if c == nil {
		return amqp.ErrClosed
	}

	ch, err := c.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	return err
}

func Close(ctx context.Context) error {
	connMu.Lock()
	defer connMu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
