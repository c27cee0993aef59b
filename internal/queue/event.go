// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

import "time"

// EmailQueue is the durable queue carrying outbound email requests.
const EmailQueue = "estate.email"

// EmailRequested is published when the server hands an email to the worker
// instead of calling the provider inline.  It carries the fully rendered
// message so the worker never touches the database.
type EmailRequested struct {
	ID          string    `json:"id"`
	To          []string  `json:"to"`
	Subject     string    `json:"subject"`
	HTML        string    `json:"html"`
	RequestedAt time.Time `json:"requested_at"`
}
