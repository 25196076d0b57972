package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"ropatopia/internal/model"
	"ropatopia/internal/platform/rabbitmq"
)

// JobProcessor runs one bulk job. A returned error nacks the delivery.
type JobProcessor interface {
	Process(ctx context.Context, msg model.BulkJobMessage) error
}

type BulkJobWorker struct {
	conn      *amqp.Connection
	processor JobProcessor
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBulkJobWorker(conn *amqp.Connection, processor JobProcessor, queueName string, logger *slog.Logger) *BulkJobWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkJobWorker{
		conn:      conn,
		processor: processor,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *BulkJobWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *BulkJobWorker) handle(ctx context.Context, d amqp.Delivery) {
	var msg model.BulkJobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == "" {
		w.logger.Error("worker decode job message failed", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.processor.Process(ctx, msg); err != nil {
		w.logger.Error("worker process job failed", "job", msg.JobID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}

func (w *BulkJobWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
