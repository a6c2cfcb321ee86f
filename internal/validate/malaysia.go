// Package validate holds the Malaysian field validators shared by the
// profile, vendor and checkout flows. Every function is pure.
package validate

import (
	"regexp"
	"sort"
	"strings"
)

// State is a Malaysian state or federal territory.
type State struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type stateRule struct {
	name    string
	postals *regexp.Regexp
}

var stateRules = map[string]stateRule{
	"JHR": {"Johor", regexp.MustCompile(`^(79|8[0-6])\d{3}$`)},
	"KDH": {"Kedah", regexp.MustCompile(`^0[5-9]\d{3}$`)},
	"KTN": {"Kelantan", regexp.MustCompile(`^1[5-8]\d{3}$`)},
	"MLK": {"Melaka", regexp.MustCompile(`^7[5-8]\d{3}$`)},
	"NSN": {"Negeri Sembilan", regexp.MustCompile(`^7[0-3]\d{3}$`)},
	"PHG": {"Pahang", regexp.MustCompile(`^(2[5-8]|39|49|69)\d{3}$`)},
	"PNG": {"Pulau Pinang", regexp.MustCompile(`^1[0-4]\d{3}$`)},
	"PRK": {"Perak", regexp.MustCompile(`^3[0-6]\d{3}$`)},
	"PLS": {"Perlis", regexp.MustCompile(`^0[1-2]\d{3}$`)},
	"SBH": {"Sabah", regexp.MustCompile(`^(8[89]|9[01])\d{3}$`)},
	"SWK": {"Sarawak", regexp.MustCompile(`^9[3-8]\d{3}$`)},
	"SGR": {"Selangor", regexp.MustCompile(`^(4[0-8]|6[3-8])\d{3}$`)},
	"TRG": {"Terengganu", regexp.MustCompile(`^2[0-4]\d{3}$`)},
	"KUL": {"W.P. Kuala Lumpur", regexp.MustCompile(`^[5-6]\d{4}$`)},
	"LBN": {"W.P. Labuan", regexp.MustCompile(`^87\d{3}$`)},
	"PJY": {"W.P. Putrajaya", regexp.MustCompile(`^62\d{3}$`)},
}

var (
	mobilePattern   = regexp.MustCompile(`^01[0-46-9]\d{7,8}$`)
	landlinePattern = regexp.MustCompile(`^0[3-9]\d{7,8}$`)
	malPattern      = regexp.MustCompile(`^MAL\d{8}[A-Z]{1,3}$`)
	phoneNoise      = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// States lists the known state codes sorted by code.
func States() []State {
	out := make([]State, 0, len(stateRules))
	for code, rule := range stateRules {
		out = append(out, State{Code: code, Name: rule.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// KnownState reports whether code is a state in the postal table.
func KnownState(code string) bool {
	_, ok := stateRules[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// PostalCode reports whether code is a valid postcode for the given state.
func PostalCode(code, state string) bool {
	rule, ok := stateRules[strings.ToUpper(strings.TrimSpace(state))]
	if !ok {
		return false
	}
	return rule.postals.MatchString(strings.TrimSpace(code))
}

// Phone reports whether s is a Malaysian mobile or landline number.
func Phone(s string) bool {
	local, ok := localPhone(s)
	if !ok {
		return false
	}
	return mobilePattern.MatchString(local) || landlinePattern.MatchString(local)
}

// MobilePhone reports whether s is a Malaysian mobile number.
func MobilePhone(s string) bool {
	local, ok := localPhone(s)
	return ok && mobilePattern.MatchString(local)
}

// FormatPhone renders a number as +60 XX-XXX XXXX. Input that matches no
// known format is returned unchanged.
func FormatPhone(s string) string {
	local, ok := localPhone(s)
	if !ok {
		return s
	}
	digits := local[1:]
	switch {
	case mobilePattern.MatchString(local) && len(digits) == 9:
		return "+60 " + digits[:2] + "-" + digits[2:5] + " " + digits[5:]
	case mobilePattern.MatchString(local) && len(digits) == 10:
		return "+60 " + digits[:2] + "-" + digits[2:6] + " " + digits[6:]
	case landlinePattern.MatchString(local) && len(digits) == 8:
		return "+60 " + digits[:1] + "-" + digits[1:4] + " " + digits[4:]
	case landlinePattern.MatchString(local) && len(digits) == 9:
		return "+60 " + digits[:1] + "-" + digits[1:5] + " " + digits[5:]
	}
	return s
}

// MALNumber reports whether s looks like a Malaysian drug registration
// number. Only the format is checked.
func MALNumber(s string) bool {
	return malPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// localPhone strips separators and rewrites +60/60 prefixes to the leading
// trunk 0.
func localPhone(s string) (string, bool) {
	n := phoneNoise.Replace(strings.TrimSpace(s))
	switch {
	case n == "":
		return "", false
	case strings.HasPrefix(n, "+60"):
		n = "0" + n[3:]
	case strings.HasPrefix(n, "60") && len(n) >= 11:
		n = "0" + n[2:]
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return n, strings.HasPrefix(n, "0")
}
