package prefetch

import (
	"fmt"
	"strings"
)

// Payload is the rendered detail view for one case.
// It is a value type and is never modified once cached.
type Payload struct {
	HTML        string `json:"html"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Validate checks that the payload carries renderable content.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.HTML) == "" {
		return fmt.Errorf("%w: empty html", ErrMalformedPayload)
	}

	return nil
}
