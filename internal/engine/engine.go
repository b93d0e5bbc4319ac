package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/shelftrack/internal/tag"
)

// Default sweep cadence and presence timeout. Both are configuration values,
// not constants of the system: deployments tune them to the readers' report
// rate.
const (
	DefaultSweepInterval   = 1 * time.Second
	DefaultPresenceTimeout = 5 * time.Second
)

// Engine is the detection reconciliation engine.
//
// Thread-safety model:
//   - SubmitDetection, ReportConnectivity, QueryReaders, RegisterReader,
//     RemoveReader, RegisterItem, ListItems: safe from any goroutine
//   - RunSweeper: call from exactly one goroutine
//
// See the package documentation for the serialization invariants.
type Engine struct {
	items        ItemStore
	registry     ReaderRegistry
	presence     *PresenceTracker
	connectivity *ConnectivityTracker
	locks        *keyLocks
	tokens       EventTokenGenerator
	now          func() time.Time

	sweepInterval   time.Duration
	presenceTimeout time.Duration
}

// Option configures engine parameters.
type Option func(*Engine)

// WithClock overrides the wall clock. Tests and the conformance harness
// inject a manual clock to drive expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithEventTokens overrides the event token generator.
func WithEventTokens(g EventTokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithSweepInterval sets the sweeper tick interval.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.sweepInterval = d
	}
}

// WithPresenceTimeout sets the last-seen age beyond which a presence entry
// expires.
func WithPresenceTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.presenceTimeout = d
	}
}

// New creates an Engine over the given item store and reader registry.
func New(items ItemStore, registry ReaderRegistry, opts ...Option) *Engine {
	e := &Engine{
		items:           items,
		registry:        registry,
		presence:        NewPresenceTracker(),
		connectivity:    NewConnectivityTracker(),
		locks:           newKeyLocks(),
		tokens:          UUIDv7Generator{},
		now:             time.Now,
		sweepInterval:   DefaultSweepInterval,
		presenceTimeout: DefaultPresenceTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitDetection ingests one raw detection event.
//
// Validation order matters for the no-mutation guarantee: the event is
// rejected (INVALID_EVENT, UNKNOWN_READER, UNREGISTERED_READER) before the
// presence tracker or the store is touched. On success the presence entry is
// updated and the reconciler applies the transition under the item key's
// lock.
//
// The presence update is allowed to survive a failed store write - presence
// is reconstructible from the next detection wave, the durable record is
// not.
func (e *Engine) SubmitDetection(ctx context.Context, readerIdentity string, rawKey string, kind tag.ReaderKind, detected bool) error {
	readerIdentity = strings.TrimSpace(readerIdentity)
	if readerIdentity == "" {
		return invalidEvent("missing reader identity")
	}
	key, err := tag.NormalizeKey(rawKey)
	if err != nil {
		return invalidEvent("missing item key")
	}
	if !kind.Valid() {
		return invalidEvent("unrecognized reader kind " + string(kind))
	}

	reader, err := e.registry.GetReader(ctx, readerIdentity)
	if err != nil {
		return persistenceFailure(key, "look up reader", err)
	}
	if reader == nil {
		return unknownReader(readerIdentity)
	}
	if reader.Kind != kind {
		return unregisteredReader(readerIdentity, kind, reader.Kind)
	}

	token := e.tokens.Generate()
	slog.Debug("processing detection",
		"token", token,
		"key", key,
		"reader", readerIdentity,
		"kind", kind,
		"detected", detected,
	)

	unlock := e.locks.lock(key)
	defer unlock()

	now := e.now()
	if detected {
		e.presence.MarkPresent(kind, key, readerIdentity, now)
		return e.reconcileDetected(ctx, token, key, kind, readerIdentity, now)
	}

	e.presence.MarkAbsent(kind, key)
	return e.reconcileAbsent(ctx, token, key, kind, readerIdentity, now)
}

// ReportConnectivity records an out-of-band heartbeat signal for a reader
// identity. Pure in-memory; never consulted by reconciliation.
func (e *Engine) ReportConnectivity(identity string, connected bool) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return invalidEvent("missing reader identity")
	}
	e.connectivity.Set(identity, connected)
	slog.Debug("connectivity updated", "reader", identity, "connected", connected)
	return nil
}

// Presence exposes the presence tracker for status queries and tests.
func (e *Engine) Presence() *PresenceTracker {
	return e.presence
}
