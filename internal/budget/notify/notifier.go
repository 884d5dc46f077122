package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"grants-cloud/internal/budget/application"
	"grants-cloud/internal/money"
	"grants-cloud/internal/observability/metrics"
)

// Clock provides time for dedupe windows.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders over-engagement events and delivers them through a channel.
// Repeated alerts for a sub-line whose amounts did not change are suppressed
// within the dedupe window.
type Notifier struct {
	channel        Channel
	template       *Template
	clock          Clock
	logger         *zap.Logger
	dedupeWindow   time.Duration
	requestTimeout time.Duration

	mu   sync.Mutex
	sent map[string]sendRecord

	queue chan application.OverEngagementDetected
	wg    sync.WaitGroup
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithRequestTimeout bounds each delivery.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger.Named("notify")
		}
	}
}

// WithQueue makes NotifyOverEngagement asynchronous with a buffer of size.
// Start must then be called to run the delivery worker.
func WithQueue(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queue = make(chan application.OverEngagementDetected, size)
		}
	}
}

// NewNotifier constructs a notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		logger:         zap.NewNop(),
		requestTimeout: 30 * time.Second,
		sent:           make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NotifyOverEngagement delivers the event, or queues it when a queue is
// configured. A full queue drops the event with a warning.
func (n *Notifier) NotifyOverEngagement(ctx context.Context, event application.OverEngagementDetected) error {
	if n == nil {
		return nil
	}
	if n.queue == nil {
		return n.Deliver(ctx, event)
	}
	select {
	case n.queue <- event:
	default:
		n.logger.Warn("notification queue full, dropping", zap.String("sub_line_id", event.SubLineID))
		metrics.IncNotification("dropped")
	}
	return nil
}

// Start runs the delivery worker until ctx is done or Close is called.
// Events already queued when ctx is done are still delivered.
func (n *Notifier) Start(ctx context.Context) {
	if n == nil || n.queue == nil {
		return
	}
	deliverCtx := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				n.drain(deliverCtx)
				return
			case event, ok := <-n.queue:
				if !ok {
					return
				}
				n.deliverQueued(deliverCtx, event)
			}
		}
	}()
}

func (n *Notifier) drain(ctx context.Context) {
	for {
		select {
		case event, ok := <-n.queue:
			if !ok {
				return
			}
			n.deliverQueued(ctx, event)
		default:
			return
		}
	}
}

func (n *Notifier) deliverQueued(ctx context.Context, event application.OverEngagementDetected) {
	if err := n.Deliver(ctx, event); err != nil {
		n.logger.Warn("notification delivery failed", zap.String("sub_line_id", event.SubLineID), zap.Error(err))
	}
}

// Close stops accepting events and waits for the worker to drain.
func (n *Notifier) Close() {
	if n == nil || n.queue == nil {
		return
	}
	close(n.queue)
	n.wg.Wait()
}

// Deliver renders and sends one event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event application.OverEngagementDetected) error {
	data := buildTemplateData(event)
	content, err := n.template.Render(data)
	if err != nil {
		metrics.IncNotification(metrics.ResultError)
		return err
	}
	fingerprint := data.Notified + "|" + data.Engaged
	if !n.shouldSend(event.SubLineID, fingerprint) {
		metrics.IncNotification("suppressed")
		return nil
	}
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}
	if err := n.channel.Send(ctx, content); err != nil {
		metrics.IncNotification(metrics.ResultError)
		return err
	}
	n.markSent(event.SubLineID, fingerprint)
	metrics.IncNotification(metrics.ResultSuccess)
	return nil
}

func buildTemplateData(event application.OverEngagementDetected) TemplateData {
	currency := string(event.Currency)
	actor := event.Actor.FullName
	if actor == "" {
		actor = event.Actor.Subject
	}
	detectedAt := event.OccurredAt
	if detectedAt.IsZero() {
		detectedAt = time.Now()
	}
	return TemplateData{
		GrantID:          event.GrantID,
		GrantCode:        event.GrantCode,
		LineCode:         event.LineCode,
		SubLineID:        event.SubLineID,
		SubLineCode:      event.SubLineCode,
		SubLineName:      event.SubLineName,
		EngagementNumber: event.EngagementNumber,
		Notified:         money.Format(event.NotifiedAmount, currency),
		Engaged:          money.Format(event.EngagedAmount, currency),
		Available:        money.Format(event.AvailableAmount, currency),
		Rate:             money.Percent(event.EngagementRate),
		Actor:            actor,
		DetectedAt:       detectedAt.UTC().Format(time.RFC3339),
	}
}

func (n *Notifier) shouldSend(key, fingerprint string) bool {
	if n.dedupeWindow <= 0 {
		return true
	}
	now := n.clock.Now().UTC()
	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	return record.hash != hashContent(fingerprint) || now.Sub(record.at) >= n.dedupeWindow
}

func (n *Notifier) markSent(key, fingerprint string) {
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(fingerprint),
	}
	n.mu.Unlock()
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
