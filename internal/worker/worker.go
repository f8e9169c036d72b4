package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/roominai/backend/internal/config"
	"github.com/roominai/backend/internal/jobs"
)

// Worker consumes generation jobs from Kafka and hands each one to the
// generation handler. The credit for each job was reserved by the API
// before the message was published.
type Worker struct {
	cfg      *config.Config
	handler  *jobs.Handler
	consumer sarama.ConsumerGroup
	ready    chan bool
}

func NewWorker(cfg *config.Config, handler *jobs.Handler, consumer sarama.ConsumerGroup) *Worker {
	slog.Info("Initializing new Worker")
	return &Worker{
		cfg:      cfg,
		handler:  handler,
		consumer: consumer,
		ready:    make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting worker", "topics", topics)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start error logging for consumer errors
	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	// Start consuming messages
	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				slog.Info("Context cancelled, exiting consumer loop")
				return
			}
			// Reset the ready channel after a new session is created
			w.ready = make(chan bool)
		}
	}()

	<-w.ready // Wait till the consumer has been set up
	slog.Info("Worker setup complete; consumer ready")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled; shutting down worker")
	}

	slog.Info("Worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	slog.Info("Consumer group session setup complete")
	close(w.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	slog.Info("Consumer group session cleanup complete")
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		slog.Info("Message received from Kafka", "offset", message.Offset, "partition", message.Partition)
		if err := w.processMessage(session.Context(), message); err != nil {
			slog.Error("Failed to process generation", "error", err)
		}
		// Mark regardless of outcome: a failed attempt has already been
		// refunded, and replaying it would double-charge the image API.
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var job jobs.GenerationJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return fmt.Errorf("failed to parse generation job: %w", err)
	}
	if job.ID == "" || job.UserID == "" {
		return fmt.Errorf("generation job missing id or user id: %s", string(msg.Value))
	}

	slog.Info("Processing generation", "generationID", job.ID, "userID", job.UserID,
		"theme", job.Theme, "room", job.Room)
	return w.handler.Process(ctx, job)
}
