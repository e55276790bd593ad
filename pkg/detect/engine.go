package detect

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine fans an input out to every applicable detector concurrently.
// Outcomes come back in dispatch order regardless of completion order, so
// the fused score and narrative are deterministic for a given input.
type Engine struct {
	detectors       []Detector
	detectorTimeout time.Duration
	globalTimeout   time.Duration
}

// NewEngine builds an engine over a fixed dispatch order.
func NewEngine(detectors []Detector, detectorTimeout, globalTimeout time.Duration) *Engine {
	if detectorTimeout <= 0 {
		detectorTimeout = 5 * time.Second
	}
	if globalTimeout <= 0 {
		globalTimeout = 20 * time.Second
	}
	return &Engine{
		detectors:       detectors,
		detectorTimeout: detectorTimeout,
		globalTimeout:   globalTimeout,
	}
}

// DetectorCount returns the size of the dispatch list.
func (e *Engine) DetectorCount() int {
	return len(e.detectors)
}

// Run executes every applicable detector and returns one outcome per
// detector, in dispatch order. A detector that panics, errors or times out
// yields a failed outcome; Run itself never fails.
func (e *Engine) Run(ctx context.Context, in *Input) []Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.globalTimeout)
	defer cancel()

	var active []Detector
	for _, d := range e.detectors {
		if a, ok := d.(Applicable); ok && !a.AppliesTo(in.Mode) {
			continue
		}
		active = append(active, d)
	}

	outcomes := make([]Outcome, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range active {
		g.Go(func() error {
			outcomes[i] = e.runOne(gctx, d, in)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Engine) runOne(ctx context.Context, d Detector, in *Input) (out Outcome) {
	out.Detector = d.Name()
	start := time.Now()
	defer func() {
		out.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
		if r := recover(); r != nil {
			log.Printf("[WARN] detector %s panicked: %v", d.Name(), r)
			out.Signals = nil
			out.Failed = true
			out.FailureReason = fmt.Sprintf("panic: %v", r)
		}
	}()

	dctx, cancel := context.WithTimeout(ctx, e.detectorTimeout)
	defer cancel()

	sigs, err := d.Detect(dctx, in)
	if err != nil {
		out.Failed = true
		out.FailureReason = err.Error()
		return out
	}
	out.Signals = sigs
	return out
}
