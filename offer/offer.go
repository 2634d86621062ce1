// Package offer converts raw upstream quotes into comparable offers,
// scores them and ranks them.
//
// # Normalization
//
// For a quote with amount range [min, max], installment range
// [minInst, maxInst] and monthly rate r:
//
//	requested    = (min + max) / 2
//	installments = round((minInst + maxInst) / 2)
//	payoff       = requested * (1 + r) ^ installments
//	installment  = payoff / installments
//	totalCost    = payoff - requested
//
// The averaged installment count is rounded half away from zero (24.5 -> 25).
// Monetary values are rounded to 2 decimal places and the interest
// percentage to 4, half away from zero on their decimal representation.
//
// # Scoring
//
// The advantage score is lower-is-better:
//
//	score = r*1000 + (installments/12)*0.2 + (totalCost/requested)*0.3
//
// It is computed from the unrounded values and is never rounded.
package offer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"github.com/sig-0/credsim/storage/types"
)

const (
	rateWeight        = 1000.0
	installmentWeight = 0.2
	costWeight        = 0.3
	monthsPerYear     = 12.0

	moneyPlaces    = 2
	percentPlaces  = 4
	percentPerUnit = 100
)

var (
	ErrMissingField            = errors.New("missing required field")
	ErrInvalidInstallmentCount = errors.New("invalid installment count")
	ErrInvalidAmount           = errors.New("invalid requested amount")
	ErrInvalidRate             = errors.New("invalid interest rate")
	ErrNonFinite               = errors.New("non-finite offer value")
)

// Normalize converts the tagged raw quote into a scored offer.
// seq is the quote's arrival position, kept as the last ranking tie-break
func Normalize(seq int, q *types.RawQuote) (*types.Offer, error) {
	if err := checkRequired(q); err != nil {
		return nil, err
	}

	var (
		rate         = *q.MonthlyRate
		requested    = (*q.MinAmount + *q.MaxAmount) / 2
		installments = math.Round((*q.MinInstallments + *q.MaxInstallments) / 2)
	)

	if math.IsNaN(installments) || installments < 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstallmentCount, installments)
	}

	if math.IsNaN(requested) || requested <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, requested)
	}

	if math.IsNaN(rate) || rate < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	var (
		payoff      = requested * math.Pow(1+rate, installments)
		installment = payoff / installments
		totalCost   = payoff - requested
		score       = rate*rateWeight +
			(installments/monthsPerYear)*installmentWeight +
			(totalCost/requested)*costWeight
	)

	for _, v := range []float64{requested, payoff, installment, score} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, ErrNonFinite
		}
	}

	return &types.Offer{
		InstitutionName:   q.InstitutionName,
		ModalityName:      q.ModalityName,
		RequestedAmount:   round(requested, moneyPlaces),
		PayoffAmount:      round(payoff, moneyPlaces),
		InterestPercent:   round(rate*percentPerUnit, percentPlaces),
		InstallmentCount:  int(installments),
		InstallmentValue:  round(installment, moneyPlaces),
		TotalInterestCost: round(totalCost, moneyPlaces),
		Score:             score,
		InstitutionID:     q.InstitutionID,
		ModalityCode:      q.ModalityCode,
		Sequence:          seq,
	}, nil
}

// NormalizeAll normalizes every quote, logging and dropping the malformed ones.
// The surviving offers keep their arrival order
func NormalizeAll(quotes []*types.RawQuote, logger *slog.Logger) []*types.Offer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	offers := make([]*types.Offer, 0, len(quotes))

	for i, q := range quotes {
		o, err := Normalize(i, q)
		if err != nil {
			logger.Error(
				"dropping malformed quote",
				"index", i,
				"institution", q.InstitutionName,
				"modality", q.ModalityName,
				"err", err,
			)

			continue
		}

		offers = append(offers, o)
	}

	return offers
}

// checkRequired verifies every field needed for normalization is present
func checkRequired(q *types.RawQuote) error {
	if q == nil {
		return fmt.Errorf("%w: quote", ErrMissingField)
	}

	required := []struct {
		value *float64
		name  string
	}{
		{q.MinAmount, "valorMin"},
		{q.MaxAmount, "valorMax"},
		{q.MinInstallments, "QntParcelaMin"},
		{q.MaxInstallments, "QntParcelaMax"},
		{q.MonthlyRate, "jurosMes"},
	}

	for _, field := range required {
		if field.value == nil {
			return fmt.Errorf("%w: %s", ErrMissingField, field.name)
		}
	}

	if q.InstitutionName == "" {
		return fmt.Errorf("%w: instituicaoFinanceira", ErrMissingField)
	}

	if q.ModalityName == "" {
		return fmt.Errorf("%w: modalidadeCredito", ErrMissingField)
	}

	return nil
}

// round rounds half away from zero, on the shortest decimal representation of v
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
