//nolint:tagliatelle // upstream API uses mixed-case keys
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sig-0/credsim/storage/types"
)

const (
	// DefaultBaseURL is the upstream sandbox simulation API
	DefaultBaseURL = "https://dev.gosat.org/api/v1/simulacao"

	// DefaultTimeout is the per-call upstream timeout
	DefaultTimeout = time.Second * 30

	discoveryPath  = "/credito"
	simulationPath = "/oferta"

	// maxBodyPreview caps the response body echoed in logs
	maxBodyPreview = 512
)

var (
	ErrDiscoveryFailed  = errors.New("institution discovery failed")
	ErrNoInstitutions   = errors.New("no institutions available")
	ErrSimulationFailed = errors.New("offer simulation failed")
)

// discoveryRequest is the request body for the discovery endpoint
type discoveryRequest struct {
	CPF string `json:"cpf"`
}

// discoveryResponse is the response from the discovery endpoint.
// A missing institutions field is distinct from an empty one
type discoveryResponse struct {
	Institutions *[]*types.Institution `json:"instituicoes"`
}

// simulationRequest is the request body for the simulation endpoint
type simulationRequest struct {
	CPF           string             `json:"cpf"`
	ModalityCode  types.ModalityCode `json:"codModalidade"`
	InstitutionID int64              `json:"instituicao_id"`
}

// simulationResponse is the quote returned by the simulation endpoint
type simulationResponse struct {
	MinAmount       *float64 `json:"valorMin"`
	MaxAmount       *float64 `json:"valorMax"`
	MinInstallments *float64 `json:"QntParcelaMin"`
	MaxInstallments *float64 `json:"QntParcelaMax"`
	MonthlyRate     *float64 `json:"jurosMes"`
}

// Client is the upstream lending API client
type Client struct {
	logger *slog.Logger
	client *http.Client

	baseURL            string
	timeout            time.Duration
	insecureSkipVerify bool
}

// NewClient creates a new upstream client for the given base URL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}

	// Apply the options
	for _, opt := range opts {
		opt(c)
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()

	if c.insecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // explicitly configured
		}
	}

	c.client = &http.Client{
		Timeout:   c.timeout,
		Transport: tr,
	}

	return c
}

// Discover fetches the institutions (and their modalities)
// available for the given normalized CPF
func (c *Client) Discover(ctx context.Context, cpf string) ([]*types.Institution, error) {
	c.logger.Info(
		"discovering institutions",
		"url", c.baseURL+discoveryPath,
	)

	var resp discoveryResponse

	if err := c.post(ctx, discoveryPath, discoveryRequest{CPF: cpf}, &resp); err != nil {
		c.logger.Error(
			"unable to discover institutions",
			"err", err,
		)

		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}

	if resp.Institutions == nil {
		c.logger.Error("discovery response is missing institutions")

		return nil, fmt.Errorf("%w: missing institutions field", ErrDiscoveryFailed)
	}

	institutions := *resp.Institutions
	if len(institutions) == 0 {
		return nil, ErrNoInstitutions
	}

	c.logger.Info(
		"discovered institutions",
		"count", len(institutions),
	)

	return institutions, nil
}

// Simulate fetches the raw quote for a single institution / modality pair.
// The returned quote is untagged
func (c *Client) Simulate(
	ctx context.Context,
	cpf string,
	institutionID int64,
	code types.ModalityCode,
) (*types.RawQuote, error) {
	reqBody := simulationRequest{
		CPF:           cpf,
		InstitutionID: institutionID,
		ModalityCode:  code,
	}

	c.logger.Debug(
		"simulating offer",
		"institution_id", institutionID,
		"modality", code.String(),
	)

	var resp simulationResponse

	if err := c.post(ctx, simulationPath, reqBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSimulationFailed, err)
	}

	return &types.RawQuote{
		MinAmount:       resp.MinAmount,
		MaxAmount:       resp.MaxAmount,
		MinInstallments: resp.MinInstallments,
		MaxInstallments: resp.MaxInstallments,
		MonthlyRate:     resp.MonthlyRate,
	}, nil
}

// post executes a JSON POST request against the upstream, decoding the response into out
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("unable to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unable to create POST request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to execute POST request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(
			"invalid status code received: %d (%s)",
			resp.StatusCode,
			preview(raw),
		)
	}

	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unable to decode response: %w", err)
	}

	return nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyPreview {
		return s[:maxBodyPreview] + "..."
	}

	return s
}
