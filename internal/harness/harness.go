package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/shelftrack/internal/engine"
	"github.com/roach88/shelftrack/internal/store"
	"github.com/roach88/shelftrack/internal/tag"
	"github.com/roach88/shelftrack/internal/testutil"
)

// scenarioEpoch is the fixed starting instant for every scenario clock.
var scenarioEpoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// TraceEvent is one entry in a scenario's execution trace.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	Reader  string `json:"reader,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Key     string `json:"key,omitempty"`
	Outcome string `json:"outcome"`
}

// Result holds the outcome of running one scenario.
type Result struct {
	Passed   bool
	Failures []string
	Trace    []TraceEvent
}

// Run executes a scenario against a fresh engine and evaluates its
// assertions.
//
// Each scenario runs in its own in-memory database. The engine gets a
// manual clock frozen at a fixed epoch and sequential event tokens, so the
// resulting trace is fully deterministic.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewManualClock(scenarioEpoch)
	eng := engine.New(st, st,
		engine.WithClock(clock.Now),
		engine.WithEventTokens(engine.NewSequenceGenerator("evt")),
	)

	ctx := context.Background()
	for identity, def := range scenario.Readers {
		if _, createErr := st.CreateReader(ctx, tag.Reader{
			Identity: identity,
			Kind:     tag.ReaderKind(def.Kind),
			Name:     def.Name,
		}); createErr != nil {
			return nil, fmt.Errorf("seeding reader %s: %w", identity, createErr)
		}
	}

	result := &Result{}
	for i, step := range scenario.Steps {
		event, err := executeStep(ctx, eng, st, clock, i+1, &step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Trace = append(result.Trace, event)
	}

	result.Failures = evaluateAssertions(ctx, eng, st, scenario.Assertions)
	result.Passed = len(result.Failures) == 0
	return result, nil
}

func executeStep(ctx context.Context, eng *engine.Engine, st *store.Store, clock *testutil.ManualClock, seq int, step *Step) (TraceEvent, error) {
	switch {
	case step.Detect != nil:
		return runSensorStep(ctx, eng, st, seq, "detect", step.Detect, true)
	case step.Vanish != nil:
		return runSensorStep(ctx, eng, st, seq, "vanish", step.Vanish, false)
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return TraceEvent{}, err
		}
		clock.Advance(d)
		return TraceEvent{Seq: seq, Op: "advance", Outcome: d.String()}, nil
	case step.Sweep:
		expired := eng.SweepNow(ctx)
		return TraceEvent{Seq: seq, Op: "sweep", Outcome: fmt.Sprintf("expired %d", expired)}, nil
	case step.Connect != nil:
		outcome := "disconnected"
		if step.Connect.Connected {
			outcome = "connected"
		}
		if err := eng.ReportConnectivity(step.Connect.Reader, step.Connect.Connected); err != nil {
			outcome = rejectionOutcome(err)
		}
		return TraceEvent{Seq: seq, Op: "connect", Reader: step.Connect.Reader, Outcome: outcome}, nil
	}
	return TraceEvent{}, fmt.Errorf("empty step")
}

// runSensorStep submits one sensor event and derives its trace outcome from
// the durable record before and after.
func runSensorStep(ctx context.Context, eng *engine.Engine, st *store.Store, seq int, op string, step *SensorStep, detected bool) (TraceEvent, error) {
	event := TraceEvent{
		Seq:    seq,
		Op:     op,
		Reader: step.Reader,
		Kind:   step.Kind,
		Key:    step.Key,
	}

	key, keyErr := tag.NormalizeKey(step.Key)
	var before *tag.Item
	if keyErr == nil {
		item, err := st.GetItem(ctx, key)
		if err != nil {
			return TraceEvent{}, err
		}
		before = item
	}

	if err := eng.SubmitDetection(ctx, step.Reader, step.Key, tag.ReaderKind(step.Kind), detected); err != nil {
		event.Outcome = rejectionOutcome(err)
		return event, nil
	}

	after, err := st.GetItem(ctx, key)
	if err != nil {
		return TraceEvent{}, err
	}

	switch {
	case after == nil:
		event.Outcome = "no-op"
	case before == nil:
		event.Outcome = fmt.Sprintf("created with status '%s'", after.Status)
	case before.Status != after.Status:
		event.Outcome = fmt.Sprintf("changed to '%s'", after.Status)
	case detected:
		event.Outcome = "observed"
	default:
		event.Outcome = "no-op"
	}
	return event, nil
}

func rejectionOutcome(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return "rejected: " + string(code)
	}
	return "rejected: " + err.Error()
}
