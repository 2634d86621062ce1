// Package identifier normalizes CPF identifiers and gates them against
// the deployment allow-list
package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotPermitted is returned for identifiers outside the allow-list
var ErrNotPermitted = errors.New("identifier not permitted")

// DefaultAllowed are the demo identifiers served by the upstream sandbox
var DefaultAllowed = []string{
	"11111111111",
	"12312312312",
	"22222222222",
}

// Normalize strips every non-digit character from the identifier
func Normalize(raw string) string {
	var b strings.Builder

	b.Grow(len(raw))

	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Format renders an 11-digit CPF in its display form (###.###.###-##).
// Other values are returned as-is
func Format(cpf string) string {
	if len(cpf) != 11 || Normalize(cpf) != cpf {
		return cpf
	}

	return cpf[0:3] + "." + cpf[3:6] + "." + cpf[6:9] + "-" + cpf[9:11]
}

// Gate is the identifier allow-list
type Gate struct {
	allowed map[string]struct{}
	display []string
}

// NewGate creates a gate for the given identifiers, normalizing them
func NewGate(allowed []string) *Gate {
	g := &Gate{
		allowed: make(map[string]struct{}, len(allowed)),
		display: make([]string, 0, len(allowed)),
	}

	for _, id := range allowed {
		n := Normalize(id)
		if n == "" {
			continue
		}

		if _, ok := g.allowed[n]; ok {
			continue
		}

		g.allowed[n] = struct{}{}
		g.display = append(g.display, Format(n))
	}

	return g
}

// Check verifies the normalized identifier is allow-listed
func (g *Gate) Check(normalized string) error {
	if _, ok := g.allowed[normalized]; ok {
		return nil
	}

	return &NotPermittedError{Accepted: g.display}
}

// Accepted returns the allow-listed identifiers, in display form
func (g *Gate) Accepted() []string {
	return append([]string(nil), g.display...)
}

// NotPermittedError carries the accepted identifiers for the caller-facing message
type NotPermittedError struct {
	Accepted []string
}

func (e *NotPermittedError) Error() string {
	return fmt.Sprintf("CPF não disponível para consulta. Use: %s", joinPT(e.Accepted))
}

func (e *NotPermittedError) Unwrap() error {
	return ErrNotPermitted
}

// joinPT joins the values as a Portuguese enumeration ("a, b ou c")
func joinPT(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	default:
		return strings.Join(values[:len(values)-1], ", ") + " ou " + values[len(values)-1]
	}
}
