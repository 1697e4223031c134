// Package notify delivers post-commit document events to users. Delivery is
// best-effort: failures are logged and never reach the caller.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bakeryerp/backend/internal/domain"
)

type Kind string

const (
	KindCreated   Kind = "created"
	KindUpdated   Kind = "updated"
	KindDeleted   Kind = "deleted"
	KindRecovered Kind = "recovered"
)

type Event struct {
	ID            string              `json:"id"`
	Kind          Kind                `json:"kind"`
	DocumentType  domain.DocumentType `json:"document_type"`
	DocumentID    int                 `json:"document_id"`
	TransactionNo string              `json:"transaction_no"`
	LocationID    int                 `json:"location_id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Actor         string              `json:"actor"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// Emitter accepts events after the unit of work that produced them commits.
// Emit must not block.
type Emitter interface {
	Emit(ev Event)
}

type Notifier interface {
	Notify(ctx context.Context, users []string, title string, body string) error
}

type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}

// Title and Body render the message shown to users.
func Title(ev Event) string {
	return fmt.Sprintf("%s %s %s", humanize(ev.DocumentType), ev.TransactionNo, ev.Kind)
}

func Body(ev Event) string {
	actor := ev.Actor
	if actor == "" {
		actor = "system"
	}
	return fmt.Sprintf("%s %s at location %d, total %s, %s by %s on %s",
		humanize(ev.DocumentType), ev.TransactionNo, ev.LocationID,
		ev.TotalAmount.StringFixed(2), ev.Kind, actor,
		ev.OccurredAt.Format("02 Jan 2006 15:04"))
}

func humanize(t domain.DocumentType) string {
	words := strings.Split(strings.ToLower(string(t)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

const notifyTimeout = 15 * time.Second

// Dispatcher queues events on a bounded channel and hands them to a Notifier
// from a single worker goroutine started by Run.
type Dispatcher struct {
	notifier Notifier
	users    []string
	logger   *logrus.Logger
	events   chan Event

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(notifier Notifier, users []string, buffer int, logger *logrus.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		notifier: notifier,
		users:    append([]string(nil), users...),
		logger:   logger,
		events:   make(chan Event, buffer),
	}
}

// Emit drops the event when the queue is full or the dispatcher is closed.
func (d *Dispatcher) Emit(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WithFields(eventFields(ev)).Warn("notification dropped: dispatcher closed")
		return
	}
	select {
	case d.events <- ev:
	default:
		d.logger.WithFields(eventFields(ev)).Warn("notification dropped: queue full")
	}
}

// Close stops accepting events. Run delivers what is already queued and
// then returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.events)
}

// Run blocks until Close has been called and the queue is drained, or ctx
// is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.events:
			if !ok {
				return
			}
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	if len(d.users) == 0 || d.notifier == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := d.notifier.Notify(sendCtx, d.users, Title(ev), Body(ev)); err != nil {
		d.logger.WithFields(eventFields(ev)).WithError(err).Warn("notification failed")
	}
}

func eventFields(ev Event) logrus.Fields {
	return logrus.Fields{
		"module":         "notify",
		"event_id":       ev.ID,
		"kind":           ev.Kind,
		"document_type":  ev.DocumentType,
		"transaction_no": ev.TransactionNo,
	}
}

type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, users []string, title string, body string) error {
	n.logger.WithFields(logrus.Fields{
		"module": "notify",
		"users":  strings.Join(users, ","),
		"title":  title,
	}).Info(body)
	return nil
}

// MultiNotifier fans out to every notifier and reports the first failure.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, users []string, title string, body string) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, users, title, body); err != nil && first == nil {
			first = err
		}
	}
	return first
}
