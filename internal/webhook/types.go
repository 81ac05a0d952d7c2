package webhook

import (
	"time"
)

type Config struct {
	URL          string
	Secret       string
	Timeout      time.Duration // per request (default: 10 seconds)
	MaxAttempts  int           // deliveries per event before it is dropped (default: 3)
	QueueSize    int           // pending events (default: 256)
	DrainTimeout time.Duration // how long Stop keeps delivering the queue (default: 5 seconds)
}

// EventPayload is the JSON body POSTed to the endpoint.
type EventPayload struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type job struct {
	eventType string
	payload   []byte
}

const EventRecognition = "recognition"
