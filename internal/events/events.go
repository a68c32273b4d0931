// Package events publishes wallet notifications after a committed ledger
// operation. Publishing is fire-and-forget: callers log failures and never
// undo the financial operation because of them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Event names
const (
	WalletCredited          = "wallet.credited"
	WalletDebited           = "wallet.debited"
	WalletCurrencyExchanged = "wallet.currency_exchanged"
	WalletTransferCompleted = "wallet.transfer_completed"
)

// DefaultChannel is the redis channel and kafka topic used when none is configured.
const DefaultChannel = "wallet-events"

// Publisher emits a named event with a JSON-serializable payload.
type Publisher interface {
	Publish(ctx context.Context, name string, payload interface{}) error
}

// Envelope is the wire form of every event.
type Envelope struct {
	Name       string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func encode(name string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}
	data, err := json.Marshal(Envelope{Name: name, Payload: body, OccurredAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", name, err)
	}
	return data, nil
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, name string, payload interface{}) error {
	data, err := encode(name, payload)
	if err != nil {
		return err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, env)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the recorded event names in publish order.
func (r *Recorder) Names() []string {
	events := r.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}
