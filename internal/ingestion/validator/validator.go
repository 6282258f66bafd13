// Package validator provides input validation for run requests. It enforces
// the date format, trigger name length and item budget and returns
// per-field error details.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion"
)

const (
	minTriggeredByLength = 2
	maxTriggeredByLength = 100
	minMaxItems          = 1
	maxMaxItems          = 250
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateRunRequest checks req and fills the trigger default. MaxItems 0
// means "use the configured default".
func ValidateRunRequest(req *ingestion.Request) error {
	errs := make(map[string]string)

	req.Date = strings.TrimSpace(req.Date)
	if req.Date != "" {
		if !datePattern.MatchString(req.Date) {
			errs["date"] = "date must be YYYY-MM-DD"
		} else if _, err := time.Parse(ingestion.DateLayout, req.Date); err != nil {
			errs["date"] = "date is not a valid calendar day"
		}
	}

	req.TriggeredBy = strings.TrimSpace(req.TriggeredBy)
	if req.TriggeredBy == "" {
		req.TriggeredBy = ingestion.DefaultTriggeredBy
	}
	if n := utf8.RuneCountInString(req.TriggeredBy); n < minTriggeredByLength || n > maxTriggeredByLength {
		errs["triggeredBy"] = fmt.Sprintf("triggeredBy must be %d to %d characters", minTriggeredByLength, maxTriggeredByLength)
	}

	if req.MaxItems != 0 && (req.MaxItems < minMaxItems || req.MaxItems > maxMaxItems) {
		errs["maxItems"] = fmt.Sprintf("maxItems must be between %d and %d", minMaxItems, maxMaxItems)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
