package server

// Response is the success envelope
type Response struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

// ErrorResponse is the failure envelope.
// Errors holds the per-field validation messages, Error the diagnostic detail
type ErrorResponse struct {
	Errors  map[string][]string `json:"errors,omitempty"`
	Message string              `json:"message"`
	Error   string              `json:"error,omitempty"`
	Success bool                `json:"success"`
}

// StatusResponse is the service status
type StatusResponse struct {
	Message   string `json:"message"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Success   bool   `json:"success"`
}

// ConsultRequest is the consultation request body
type ConsultRequest struct {
	CPF any `json:"cpf"`
}
