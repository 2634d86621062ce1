// Package simulate runs a credit consultation end to end: it gates the
// identifier, discovers the available institutions, fans out the offer
// simulations, ranks the normalized offers and persists the consultation
package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sig-0/credsim/identifier"
	"github.com/sig-0/credsim/metrics"
	"github.com/sig-0/credsim/offer"
	"github.com/sig-0/credsim/storage"
	"github.com/sig-0/credsim/storage/types"
	"github.com/sig-0/credsim/upstream"
)

// QueriedAtLayout is the caller-facing consultation timestamp layout
const QueriedAtLayout = "02/01/2006 15:04:05"

var ErrMissingIdentifier = errors.New("identifier is required")

// Result is the caller-facing consultation result
type Result struct {
	QueriedAt time.Time
	CPF       string
	Offers    []*types.Offer
	Total     int
}

type resultJSON struct {
	CPF       string         `json:"cpf"`
	Offers    []*types.Offer `json:"ofertas"`
	Total     int            `json:"total_ofertas"`
	QueriedAt string         `json:"data_consulta"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		CPF:       r.CPF,
		Offers:    r.Offers,
		Total:     r.Total,
		QueriedAt: r.QueriedAt.Format(QueriedAtLayout),
	})
}

// Service is the credit consultation pipeline
type Service struct {
	storage      storage.Storage
	discoverer   upstream.Discoverer
	gate         *identifier.Gate
	orchestrator *Orchestrator

	logger  *slog.Logger
	metrics *metrics.Manager
	now     func() time.Time

	concurrency int
}

// NewService creates a new consultation service
func NewService(
	storage storage.Storage,
	discoverer upstream.Discoverer,
	simulator Simulator,
	gate *identifier.Gate,
	opts ...Option,
) *Service {
	s := &Service{
		storage:     storage,
		discoverer:  discoverer,
		gate:        gate,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		concurrency: DefaultConcurrency,
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	s.orchestrator = NewOrchestrator(simulator, s.concurrency, s.logger, s.metrics)

	return s
}

// Consult runs a full consultation for the raw (caller-formatted) CPF.
// The identifier is checked against the allow-list before any upstream call
func (s *Service) Consult(ctx context.Context, rawCPF string) (*Result, error) {
	if strings.TrimSpace(rawCPF) == "" {
		s.metrics.RecordConsultation(metrics.OutcomeRejected)

		return nil, ErrMissingIdentifier
	}

	cpf := identifier.Normalize(rawCPF)

	if err := s.gate.Check(cpf); err != nil {
		s.metrics.RecordConsultation(metrics.OutcomeRejected)

		return nil, err
	}

	s.logger.Info("consultation started")

	// Discover the institutions
	start := time.Now()
	institutions, err := s.discoverer.Discover(ctx, cpf)

	s.metrics.RecordUpstreamCall(metrics.EndpointDiscovery, err, time.Since(start))

	if err != nil {
		s.metrics.RecordConsultation(metrics.OutcomeFailed)

		return nil, err
	}

	// Simulate every institution / modality pair
	quotes, err := s.orchestrator.Collect(ctx, cpf, institutions)
	if err != nil {
		s.recordFailure(err)

		return nil, err
	}

	offers := offer.NormalizeAll(quotes, s.logger)

	s.metrics.RecordOffers(len(quotes), len(quotes)-len(offers))

	if len(offers) == 0 {
		s.metrics.RecordConsultation(metrics.OutcomeNoOffers)

		return nil, ErrNoOffers
	}

	ranked := offer.Rank(offers, offer.TopK)

	record := &types.SimulationRecord{
		CPF:            rawCPF,
		OriginalOffers: quotes,
		RankedOffers:   ranked,
		QueriedAt:      s.now(),
	}

	if err = s.storage.SaveSimulation(ctx, record); err != nil {
		s.metrics.RecordConsultation(metrics.OutcomeFailed)

		return nil, fmt.Errorf("unable to save simulation: %w", err)
	}

	s.logger.Info(
		"consultation completed",
		"id", record.ID,
		"quotes", len(quotes),
		"offers", len(ranked),
	)

	s.metrics.RecordConsultation(metrics.OutcomeSuccess)

	return &Result{
		CPF:       rawCPF,
		Offers:    ranked,
		Total:     len(ranked),
		QueriedAt: record.QueriedAt,
	}, nil
}

// recordFailure records the consultation outcome for a collection error
func (s *Service) recordFailure(err error) {
	if errors.Is(err, ErrNoOffers) {
		s.metrics.RecordConsultation(metrics.OutcomeNoOffers)

		return
	}

	s.metrics.RecordConsultation(metrics.OutcomeFailed)
}
