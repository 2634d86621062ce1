package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/sig-0/credsim/identifier"
	"github.com/sig-0/credsim/simulate"
	"github.com/sig-0/credsim/upstream"
)

const (
	// Version is the API version reported by the status endpoint
	Version = "1.0.0"

	statusTimestampLayout = "2006-01-02 15:04:05"
	defaultHistoryLimit   = 50
	maxBodySize           = 1 << 20
)

const (
	msgStatus         = "API Simulação de Crédito funcionando"
	msgCPFRequired    = "CPF é obrigatório"
	msgNoInstitutions = "Nenhuma instituição disponível para este CPF"
	msgNoOffers       = "Nenhuma oferta disponível para este CPF"
	msgInternalError  = "Erro interno do servidor"
	msgHistoryFailed  = "Erro ao buscar histórico"

	msgFieldRequired = "The cpf field is required."
	msgFieldString   = "The cpf field must be a string."
)

var errInvalidBody = errors.New("invalid request body")

// validationError is a request validation failure, keyed by field
type validationError map[string][]string

func (s *Server) Consult(w http.ResponseWriter, r *http.Request) {
	cpf, verr := parseCPF(r)
	if verr != nil {
		writeJSON(w, http.StatusBadRequest, &ErrorResponse{
			Message: msgCPFRequired,
			Errors:  verr,
		})

		return
	}

	result, err := s.consulter.Consult(r.Context(), cpf)
	if err != nil {
		s.writeConsultError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, &Response{
		Success: true,
		Data:    result,
	})
}

func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s.config.Simulation != nil && s.config.Simulation.HistoryLimit > 0 {
		limit = s.config.Simulation.HistoryLimit
	}

	records, err := s.storage.LatestSimulations(r.Context(), limit)
	if err != nil {
		s.logger.Error(
			"unable to fetch simulation history",
			"err", err,
		)

		writeJSON(w, http.StatusInternalServerError, &ErrorResponse{
			Message: msgHistoryFailed,
			Error:   s.errorDetail(err),
		})

		return
	}

	writeJSON(w, http.StatusOK, &Response{
		Success: true,
		Data:    records,
	})
}

func (s *Server) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, &StatusResponse{
		Success:   true,
		Message:   msgStatus,
		Version:   Version,
		Timestamp: s.now().Format(statusTimestampLayout),
	})
}

// writeConsultError maps a consultation error to its caller-facing response
func (s *Server) writeConsultError(w http.ResponseWriter, err error) {
	var notPermitted *identifier.NotPermittedError

	switch {
	case errors.Is(err, simulate.ErrMissingIdentifier):
		writeJSON(w, http.StatusBadRequest, &ErrorResponse{
			Message: msgCPFRequired,
			Errors:  validationError{"cpf": {msgFieldRequired}},
		})
	case errors.As(err, &notPermitted):
		writeJSON(w, http.StatusBadRequest, &ErrorResponse{
			Message: notPermitted.Error(),
		})
	case errors.Is(err, upstream.ErrDiscoveryFailed),
		errors.Is(err, upstream.ErrNoInstitutions):
		s.logger.Warn(
			"institution discovery failed",
			"err", err,
		)

		writeJSON(w, http.StatusInternalServerError, &ErrorResponse{
			Message: msgNoInstitutions,
		})
	case errors.Is(err, simulate.ErrNoOffers):
		writeJSON(w, http.StatusNotFound, &ErrorResponse{
			Message: msgNoOffers,
		})
	default:
		s.logger.Error(
			"unable to complete consultation",
			"err", err,
		)

		writeJSON(w, http.StatusInternalServerError, &ErrorResponse{
			Message: msgInternalError,
			Error:   s.errorDetail(err),
		})
	}
}

// errorDetail returns the diagnostic detail for the caller, if exposed
func (s *Server) errorDetail(err error) string {
	if !s.config.ExposeErrors {
		return ""
	}

	return err.Error()
}

// parseCPF extracts the raw cpf from a JSON or form request body
func parseCPF(r *http.Request) (string, validationError) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		cpf := r.FormValue("cpf")
		if strings.TrimSpace(cpf) == "" {
			return "", validationError{"cpf": {msgFieldRequired}}
		}

		return cpf, nil
	}

	var req ConsultRequest

	if err := decodeBody(r, &req); err != nil {
		return "", validationError{"cpf": {msgFieldRequired}}
	}

	switch cpf := req.CPF.(type) {
	case nil:
		return "", validationError{"cpf": {msgFieldRequired}}
	case string:
		if strings.TrimSpace(cpf) == "" {
			return "", validationError{"cpf": {msgFieldRequired}}
		}

		return cpf, nil
	default:
		return "", validationError{"cpf": {msgFieldString}}
	}
}

// decodeBody decodes the JSON request body into v
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errInvalidBody
	}

	if err = json.Unmarshal(body, v); err != nil {
		return errInvalidBody
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}
