package simulate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/credsim/metrics"
	"github.com/sig-0/credsim/storage/types"
)

// DefaultConcurrency is the default number of simultaneous simulation calls
const DefaultConcurrency = 4

var ErrNoOffers = errors.New("no offers available")

// Simulator fetches the raw quote for a single institution / modality pair
type Simulator interface {
	Simulate(
		ctx context.Context,
		cpf string,
		institutionID int64,
		code types.ModalityCode,
	) (*types.RawQuote, error)
}

// pair is a single simulation task
type pair struct {
	institution *types.Institution
	modality    types.Modality
}

// Outcome is the result of a single simulation task.
// Exactly one of Quote and Err is set
type Outcome struct {
	Quote *types.RawQuote // the tagged quote, on success
	Err   error           // the skip reason, on failure

	InstitutionName string
	ModalityName    string
}

// Skipped returns a flag indicating if the task yielded no quote
func (o Outcome) Skipped() bool {
	return o.Quote == nil
}

// Orchestrator fans out the simulation calls for a discovered institution set
type Orchestrator struct {
	simulator   Simulator
	logger      *slog.Logger
	metrics     *metrics.Manager
	concurrency int
}

// NewOrchestrator creates a new fan-out orchestrator.
// A non-positive concurrency falls back to DefaultConcurrency
func NewOrchestrator(
	simulator Simulator,
	concurrency int,
	logger *slog.Logger,
	m *metrics.Manager,
) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Orchestrator{
		simulator:   simulator,
		concurrency: concurrency,
		logger:      logger,
		metrics:     m,
	}
}

// Collect simulates every (institution, modality) pair and returns the
// successful tagged quotes, in discovery order.
// Failed pairs are skipped. No surviving quote yields ErrNoOffers
func (o *Orchestrator) Collect(
	ctx context.Context,
	cpf string,
	institutions []*types.Institution,
) ([]*types.RawQuote, error) {
	outcomes := o.Outcomes(ctx, cpf, institutions)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quotes := make([]*types.RawQuote, 0, len(outcomes))

	for _, outcome := range outcomes {
		if outcome.Skipped() {
			continue
		}

		quotes = append(quotes, outcome.Quote)
	}

	if len(quotes) == 0 {
		return nil, ErrNoOffers
	}

	return quotes, nil
}

// Outcomes runs the bounded fan-out and returns one outcome per pair,
// indexed by the pair's discovery position [BLOCKING]
func (o *Orchestrator) Outcomes(
	ctx context.Context,
	cpf string,
	institutions []*types.Institution,
) []Outcome {
	var (
		pairs    = buildPairs(institutions)
		outcomes = make([]Outcome, len(pairs))
		logger   = o.logger.With("batch", xid.New().String())
	)

	if len(pairs) == 0 {
		return outcomes
	}

	logger.Info(
		"simulating offers",
		"pairs", len(pairs),
		"concurrency", o.concurrency,
	)

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, p := range pairs {
		g.Go(func() error {
			outcomes[i] = o.simulate(ctx, cpf, p)

			return nil
		})
	}

	// Tasks never fail the group, every failure is an outcome
	_ = g.Wait()

	skipped := 0

	for _, outcome := range outcomes {
		if !outcome.Skipped() {
			continue
		}

		skipped++

		logger.Warn(
			"simulation skipped",
			"institution", outcome.InstitutionName,
			"modality", outcome.ModalityName,
			"err", outcome.Err,
		)
	}

	logger.Info(
		"simulations collected",
		"succeeded", len(outcomes)-skipped,
		"skipped", skipped,
	)

	return outcomes
}

// simulate runs a single simulation task and tags its quote
func (o *Orchestrator) simulate(ctx context.Context, cpf string, p pair) Outcome {
	outcome := Outcome{
		InstitutionName: p.institution.Name,
		ModalityName:    p.modality.Name,
	}

	start := time.Now()
	quote, err := o.simulator.Simulate(ctx, cpf, p.institution.ID, p.modality.Code)

	o.metrics.RecordUpstreamCall(metrics.EndpointSimulation, err, time.Since(start))

	if err != nil {
		outcome.Err = err

		return outcome
	}

	if quote == nil {
		outcome.Err = errors.New("empty simulation response")

		return outcome
	}

	quote.InstitutionName = p.institution.Name
	quote.ModalityName = p.modality.Name
	quote.InstitutionID = p.institution.ID
	quote.ModalityCode = p.modality.Code

	outcome.Quote = quote

	return outcome
}

// buildPairs flattens the institutions into simulation tasks, in discovery order
func buildPairs(institutions []*types.Institution) []pair {
	pairs := make([]pair, 0, len(institutions))

	for _, institution := range institutions {
		if institution == nil {
			continue
		}

		for _, modality := range institution.Modalities {
			pairs = append(pairs, pair{
				institution: institution,
				modality:    modality,
			})
		}
	}

	return pairs
}
