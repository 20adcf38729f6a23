package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/microblog/internal/broker"
	"example.com/microblog/internal/logger"
	"example.com/microblog/internal/mailer"
	"example.com/microblog/internal/models"
	"example.com/microblog/internal/store"
)

var logg = logger.New()

// Worker consumes post-created events and emails each follower of the
// author a new-post notification, best-effort.
type Worker struct {
	store        store.StoreInterface
	reader       appkafka.KafkaReader
	mailer       mailer.Mailer
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(store store.StoreInterface, reader appkafka.KafkaReader, m mailer.Mailer, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        store,
		reader:       reader,
		mailer:       m,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}(i)
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			select {
			case jobs <- msg.Value:
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
			}
		}
	}
}

// processLoop decodes post events and fans out notification emails.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-jobs:
			if !ok {
				return
			}

			var event models.PostEvent
			if err := json.Unmarshal(data, &event); err != nil {
				logg.Error("worker", "Invalid JSON in Kafka message", err)
				continue
			}

			emails, err := w.store.FollowerEmails(ctx, event.Post.AuthorID)
			if err != nil {
				logg.Error("worker", "Error fetching follower emails for post author", err)
				continue
			}

			const fanoutLimit = 20
			var fanoutWG sync.WaitGroup
			semaphore := make(chan struct{}, fanoutLimit)

			for _, addr := range emails {
				select {
				case <-ctx.Done():
					return
				default:
					fanoutWG.Add(1)
					semaphore <- struct{}{}

					go func(to string) {
						defer fanoutWG.Done()
						defer func() { <-semaphore }()
						w.mailer.Send(notificationEmail(to, event))
					}(addr)
				}
			}

			fanoutWG.Wait()
			logg.Info("worker", "Notifications enqueued for followers (post ID anonymized)")
		}
	}
}

// notificationEmail builds the new-post notification for one follower.
func notificationEmail(to string, event models.PostEvent) mailer.Email {
	return mailer.Email{
		Subject:  fmt.Sprintf("[Microblog] %s has a new post", event.AuthorUsername),
		To:       []string{to},
		TextBody: fmt.Sprintf("%s posted:\n\n%s\n", event.AuthorUsername, event.Post.Body),
	}
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader, the mailer, and the store.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing mailer")
	w.mailer.Close()

	logg.Info("worker", "Closing store")
	w.store.Close()
	return nil
}
