//nolint:tagliatelle // upstream and persisted keys are fixed
package types

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// ModalityCode is the upstream credit product code.
// The upstream sends it either as a string or as a number,
// and expects it back in the same form
type ModalityCode struct {
	value   string
	numeric bool
}

// StringCode creates a modality code encoded as a JSON string
func StringCode(value string) ModalityCode {
	return ModalityCode{value: value}
}

// NumericCode creates a modality code encoded as a JSON number.
// value must be a valid number literal
func NumericCode(value string) ModalityCode {
	return ModalityCode{value: value, numeric: true}
}

func (c ModalityCode) String() string {
	return c.value
}

// Numeric returns a flag indicating if the code is encoded as a JSON number
func (c ModalityCode) Numeric() bool {
	return c.numeric
}

func (c ModalityCode) MarshalJSON() ([]byte, error) {
	if c.numeric {
		return []byte(c.value), nil
	}

	return json.Marshal(c.value)
}

func (c *ModalityCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if string(data) == "null" {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*c = StringCode(s)

		return nil
	}

	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("invalid modality code %q", data)
	}

	*c = NumericCode(string(data))

	return nil
}

// Modality is a single credit product offered by an institution
type Modality struct {
	Code ModalityCode `json:"cod"`
	Name string       `json:"nome"`
}

// Institution is a lender, as reported by the discovery endpoint
type Institution struct {
	Name       string     `json:"nome"`
	Modalities []Modality `json:"modalidades"`
	ID         int64      `json:"id"`
}

// RawQuote is the upstream simulation response for a single
// institution / modality pair, with the orchestrator tags attached.
// Quote fields are pointers so their presence can be checked
type RawQuote struct {
	MinAmount       *float64 `json:"valorMin,omitempty"`
	MaxAmount       *float64 `json:"valorMax,omitempty"`
	MinInstallments *float64 `json:"QntParcelaMin,omitempty"`
	MaxInstallments *float64 `json:"QntParcelaMax,omitempty"`
	MonthlyRate     *float64 `json:"jurosMes,omitempty"`

	InstitutionName string       `json:"instituicaoFinanceira,omitempty"`
	ModalityName    string       `json:"modalidadeCredito,omitempty"`
	InstitutionID   int64        `json:"instituicao_id,omitempty"`
	ModalityCode    ModalityCode `json:"codModalidade,omitempty"`
}

// Offer is the normalized, comparable representation of a RawQuote
type Offer struct {
	InstitutionName   string  `json:"instituicaoFinanceira"`
	ModalityName      string  `json:"modalidadeCredito"`
	RequestedAmount   float64 `json:"valorSolicitado"`
	PayoffAmount      float64 `json:"valorAPagar"`
	InterestPercent   float64 `json:"taxaJuros"`
	InstallmentCount  int     `json:"qntParcelas"`
	InstallmentValue  float64 `json:"valorParcela"`
	TotalInterestCost float64 `json:"custoTotal"`
	Score             float64 `json:"score_vantagem"`

	// identity, used for deterministic ranking
	InstitutionID int64        `json:"-"`
	ModalityCode  ModalityCode `json:"-"`
	Sequence      int          `json:"-"`
}

// SimulationRecord is a single persisted consultation
type SimulationRecord struct {
	QueriedAt      time.Time   `json:"data_consulta"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	CPF            string      `json:"cpf"`
	OriginalOffers []*RawQuote `json:"ofertas_originais"`
	RankedOffers   []*Offer    `json:"ofertas_processadas"`
	ID             int64       `json:"id"`
}
