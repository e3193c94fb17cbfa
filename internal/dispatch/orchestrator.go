// Package dispatch is the delivery orchestrator: it claims a batch of
// pending messages, routes each one, renders its content, attempts delivery
// through the primary transport with a single failover retry, and persists a
// terminal status for every claimed message before the batch returns.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"mailroute/internal/domain"
	"mailroute/internal/observability"
	"mailroute/internal/routing"
	"mailroute/internal/store"
	"mailroute/internal/template"
	"mailroute/internal/transport"
)

type Store interface {
	ClaimBatch(ctx context.Context, limit int, now time.Time, staleAfter time.Duration) ([]domain.Message, error)
	FinishMessage(ctx context.Context, in store.MessageResult) error
	ListActiveRules(ctx context.Context) ([]domain.RoutingRule, error)
	ListProviders(ctx context.Context) ([]domain.Provider, error)
	ListAddresses(ctx context.Context) ([]domain.Address, error)
	GetTemplate(ctx context.Context, id string) (domain.Template, error)
}

// TransportFactory builds the transport for a provider. Swappable in tests.
type TransportFactory func(domain.Provider) (transport.Transport, error)

type Orchestrator struct {
	Store        Store
	NewTransport TransportFactory

	BatchSize   int
	Concurrency int
	SendTimeout time.Duration
	StaleAfter  time.Duration

	ProviderRPS   float64
	ProviderBurst int

	// Per-provider limiters and breakers persist across batches; the
	// routing/provider snapshot does not.
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
}

// outcome is the terminal result of processing one claimed message.
type outcome struct {
	status   domain.MessageStatus
	lastErr  string
	attempts int
}

// RunBatch executes one orchestrator invocation. Trigger is "schedule" or
// "manual", for metrics only. Every claimed message ends the call in sent or
// failed; per-message failures never abort the rest of the batch.
func (o *Orchestrator) RunBatch(ctx context.Context, trigger string) (domain.BatchSummary, error) {
	now := time.Now().UTC()
	observability.Batches.WithLabelValues(trigger).Inc()

	msgs, err := o.Store.ClaimBatch(ctx, o.BatchSize, now, o.StaleAfter)
	if err != nil {
		return domain.BatchSummary{}, err
	}
	if len(msgs) == 0 {
		return domain.BatchSummary{}, nil
	}

	snap, err := o.loadSnapshot(ctx)
	if err != nil {
		// Claimed messages must not be stranded: without routing data the
		// whole batch fails with the load error.
		for _, m := range msgs {
			o.finish(ctx, m.ID, outcome{status: domain.StatusFailed, lastErr: "routing snapshot: " + err.Error()})
		}
		return domain.BatchSummary{Processed: len(msgs), Failed: len(msgs)}, err
	}

	workers := o.Concurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(msgs) {
		workers = len(msgs)
	}

	jobs := make(chan domain.Message)
	var summary domain.BatchSummary
	var sumMu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				res := o.process(ctx, snap, m)
				o.finish(ctx, m.ID, res)

				sumMu.Lock()
				summary.Processed++
				if res.status == domain.StatusSent {
					summary.Sent++
				} else {
					summary.Failed++
				}
				sumMu.Unlock()
			}
		}()
	}

	for _, m := range msgs {
		jobs <- m
	}
	close(jobs)
	wg.Wait()

	slog.Info("dispatch batch finished",
		"trigger", trigger,
		"processed", summary.Processed,
		"sent", summary.Sent,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (o *Orchestrator) loadSnapshot(ctx context.Context) (*routing.Snapshot, error) {
	rules, err := o.Store.ListActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	providers, err := o.Store.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	addresses, err := o.Store.ListAddresses(ctx)
	if err != nil {
		return nil, err
	}
	return routing.NewSnapshot(rules, providers, addresses), nil
}

func (o *Orchestrator) process(ctx context.Context, snap *routing.Snapshot, m domain.Message) outcome {
	route, err := snap.Resolve(m.Category)
	if err != nil {
		if errors.Is(err, domain.ErrNoRoute) {
			observability.Routes.WithLabelValues("no_route").Inc()
			return outcome{status: domain.StatusFailed, lastErr: "no route found for category " + string(m.Category)}
		}
		observability.Routes.WithLabelValues("config_error").Inc()
		return outcome{status: domain.StatusFailed, lastErr: err.Error()}
	}
	observability.Routes.WithLabelValues("ok").Inc()

	content, err := o.render(ctx, m)
	if err != nil {
		return outcome{status: domain.StatusFailed, lastErr: err.Error()}
	}

	attempts := 0
	primaryErr := o.attempt(ctx, route.Primary, m.Recipient, content)
	attempts++
	if primaryErr == nil {
		return outcome{status: domain.StatusSent, attempts: attempts}
	}

	lastErr := primaryErr
	if route.Failover != nil {
		failoverErr := o.attempt(ctx, *route.Failover, m.Recipient, content)
		attempts++
		if failoverErr == nil {
			return outcome{status: domain.StatusSent, attempts: attempts}
		}
		lastErr = failoverErr
	}

	return outcome{status: domain.StatusFailed, lastErr: lastErr.Error(), attempts: attempts}
}

// render resolves the message's template reference, if any, and substitutes
// variables into whichever subject/body applies.
func (o *Orchestrator) render(ctx context.Context, m domain.Message) (template.Content, error) {
	subject, body := m.Subject, m.Body
	if m.TemplateID != "" {
		tpl, err := o.Store.GetTemplate(ctx, m.TemplateID)
		if err != nil {
			if errors.Is(err, domain.ErrTemplateNotFound) {
				return template.Content{}, errors.New("template not found: " + m.TemplateID)
			}
			return template.Content{}, err
		}
		subject, body = tpl.Subject, tpl.Body
	}
	return template.RenderContent(subject, body, m.Vars), nil
}

// attempt performs a single bounded delivery call through one endpoint.
func (o *Orchestrator) attempt(ctx context.Context, ep routing.Endpoint, recipient string, content template.Content) error {
	factory := o.NewTransport
	if factory == nil {
		factory = transport.New
	}
	tr, err := factory(ep.Provider)
	if err != nil {
		observability.Deliveries.WithLabelValues(string(ep.Provider.Kind), "config_error").Inc()
		return err
	}

	req := transport.Request{
		FromEmail: ep.Address.Email,
		FromName:  ep.Address.DisplayName,
		ReplyTo:   ep.Address.ReplyTo,
		To:        recipient,
		Subject:   content.Subject,
		Body:      content.Body,
	}

	callCtx, cancel := context.WithTimeout(ctx, o.sendTimeout())
	defer cancel()

	if err := o.limiter(ep.Provider.ID).Wait(callCtx); err != nil {
		observability.Deliveries.WithLabelValues(string(ep.Provider.Kind), "rate_limited").Inc()
		return errors.New("provider " + ep.Provider.Name + ": rate limit wait: " + err.Error())
	}

	start := time.Now()
	_, err = o.breaker(ep.Provider.ID).Execute(func() (any, error) {
		return nil, tr.Send(callCtx, req)
	})
	observability.SendLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.Deliveries.WithLabelValues(string(ep.Provider.Kind), "error").Inc()
		return errors.New("provider " + ep.Provider.Name + ": " + err.Error())
	}
	observability.Deliveries.WithLabelValues(string(ep.Provider.Kind), "ok").Inc()
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, id string, res outcome) {
	observability.Terminal.WithLabelValues(string(res.status)).Inc()
	err := o.Store.FinishMessage(ctx, store.MessageResult{
		ID:        id,
		Status:    res.status,
		LastError: res.lastErr,
		Attempts:  res.attempts,
		Now:       time.Now().UTC(),
	})
	if err != nil {
		slog.Error("finish message failed", "err", err, "message_id", id, "status", res.status)
	}
}

func (o *Orchestrator) sendTimeout() time.Duration {
	if o.SendTimeout > 0 {
		return o.SendTimeout
	}
	return 10 * time.Second
}

func (o *Orchestrator) limiter(providerID string) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.limiters == nil {
		o.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := o.limiters[providerID]
	if !ok {
		rps := o.ProviderRPS
		if rps <= 0 {
			rps = 10
		}
		burst := o.ProviderBurst
		if burst <= 0 {
			burst = 20
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
		o.limiters[providerID] = l
	}
	return l
}

func (o *Orchestrator) breaker(providerID string) *gobreaker.CircuitBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.breakers == nil {
		o.breakers = make(map[string]*gobreaker.CircuitBreaker)
	}
	cb, ok := o.breakers[providerID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        providerID,
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		})
		o.breakers[providerID] = cb
	}
	return cb
}
