package validate

import (
	"sort"
	"strings"

	"pharmamart/internal/domain"
)

// FieldErrors collects per-field validation messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless one is already present.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Err returns fe as an error, or nil when empty.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Address checks a shipping/business address. The prefix is prepended to
// field names ("address." gives "address.postalCode").
func Address(a domain.Address, prefix string, fe FieldErrors) {
	if strings.TrimSpace(a.Line1) == "" {
		fe.Add(prefix+"line1", "required")
	}
	if strings.TrimSpace(a.City) == "" {
		fe.Add(prefix+"city", "required")
	}
	switch {
	case strings.TrimSpace(a.State) == "":
		fe.Add(prefix+"state", "required")
	case !KnownState(a.State):
		fe.Add(prefix+"state", "unknown state code")
	case strings.TrimSpace(a.PostalCode) == "":
		fe.Add(prefix+"postalCode", "required")
	case !PostalCode(a.PostalCode, a.State):
		fe.Add(prefix+"postalCode", "does not match state")
	}
}
