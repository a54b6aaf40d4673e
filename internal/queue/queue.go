package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue delivers messages to subscribers in-process, retrying a
// failing handler with a linear backoff.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error

	MaxRetries int
	Backoff    time.Duration
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := append([]func(payload any) error(nil), q.handlers[topic]...)
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go q.processJob(handler, JobPayload{Topic: topic, Payload: payload, MaxRetries: q.MaxRetries})
	}
	return nil
}

func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for {
		err := handler(job.Payload)
		if err == nil {
			return
		}

		job.RetryCount++
		log.Printf("[queue] %s job failed (attempt %d/%d): %v", job.Topic, job.RetryCount, job.MaxRetries+1, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("[queue] %s job permanently failed after %d attempts", job.Topic, job.RetryCount)
			return
		}
		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)

// StartCRMPushLogger subscribes a handler that logs CRM push messages.
// Broker deliveries that are not valid JSON are rejected.
func StartCRMPushLogger(q Queue, topic string) error {
	return q.Subscribe(topic, logCRMPush)
}

func logCRMPush(payload any) error {
	if raw, ok := payload.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return errors.New("malformed CRM push message")
		}
		log.Printf("📤 [crm_push] %s", raw)
		return nil
	}
	log.Printf("📤 [crm_push] %+v", payload)
	return nil
}
