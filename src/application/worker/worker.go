package worker

import (
	"trackmux/src/lib/cerr"

	"github.com/apex/log"

	"github.com/streadway/amqp"
)

type MessageChannel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type QueueWorker struct {
	channel   MessageChannel
	queueName string
	handlers  []MessageHandler
}

func NewQueueWorker(channel MessageChannel, queueName string, handlers []MessageHandler) QueueWorker {
	return QueueWorker{
		channel:   channel,
		queueName: queueName,
		handlers:  handlers,
	}
}

func NewQueueWorkerFromConnection(conn *amqp.Connection, queueName string, handlers []MessageHandler) (QueueWorker, error) {
	rabbitChannel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return QueueWorker{}, cerr.Wrap(err).Error("Failed to get channel")
	}

	queue, err := rabbitChannel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)

	if err != nil {
		_ = rabbitChannel.Close()
		return QueueWorker{}, cerr.Wrap(err).Error("Failed to declare queue")
	}

	return NewQueueWorker(rabbitChannel, queue.Name, handlers), nil
}

func (q *QueueWorker) Start() error {
	log.Info("Starting worker")

	defer q.channel.Close()

	messageStream, err := q.channel.Consume(
		q.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)

	if err != nil {
		return cerr.Field("queue_name", q.queueName).
			Wrap(err).Error("Failed to start consuming from channel")
	}

	for message := range messageStream {
		logger := log.WithField("message_type", message.Type)
		logger.Info("Handling message")

		err := q.handleMessage(message)
		if err != nil {
			cerr.Log(cerr.Field("message_type", message.Type).
				Wrap(err).Error("Failed to process message"))

			if err = message.Nack(false, false); err != nil {
				logger.Error("Failed to nack message")
			}
		} else {
			logger.Info("Successfully processed message")
			if err = message.Ack(false); err != nil {
				logger.Error("Failed to ack message")
			}
		}
	}

	return nil
}

// handleMessage routes to the first registered handler claiming the message
// type.
func (q *QueueWorker) handleMessage(message amqp.Delivery) error {
	for _, handler := range q.handlers {
		if handler.JobType() != message.Type {
			continue
		}

		return handler.HandleMessage(message.Body)
	}

	return cerr.Field("message_type", message.Type).Error("Unrecognized job type")
}
