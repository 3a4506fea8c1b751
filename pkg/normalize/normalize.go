// Package normalize canonicalizes raw source records before blocking and
// matching. All functions are pure; malformed values degrade to nil rather
// than failing the record.
package normalize

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var spaceRe = regexp.MustCompile(`\s+`)

// CleanString trims, collapses internal whitespace, and lowercases.
// Empty results are returned as "".
func CleanString(s string) string {
	s = strings.TrimSpace(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(s)
}

// CleanName normalizes a person or organization name for matching.
// Punctuation is dropped, common personal suffixes removed.
func CleanName(s string) string {
	s = CleanString(s)

	suffixes := []string{" jr.", " jr", " sr.", " sr", " iii", " ii", " iv", " phd", " md"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(result.String())
}

// Domain extracts a bare domain from a URL or hostname: scheme, leading
// "www.", path, query, fragment, port, and credentials are all stripped.
// Returns "" when nothing domain-like remains.
func Domain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.LastIndex(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(s, "www.")

	if !strings.Contains(s, ".") {
		return ""
	}
	return s
}

// dateLayouts are tried in order. Partial dates (year, year-month) resolve
// to the first day of the period.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01",
	"2006",
	"01/02/2006",
	"Jan 2, 2006",
}

// Date parses a date string leniently. Unparseable or empty input returns
// nil, never an error.
func Date(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Tokens splits a list-valued field into a sorted, deduplicated set of
// lowercase tokens. Accepts a JSON array, a comma-separated string, or a
// single value.
func Tokens(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				parts = arr
				break
			}
		}
		parts = strings.Split(s, ",")
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(parts))
	var out []string
	for _, p := range parts {
		p = CleanString(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// employeeRanges are the standard bands, checked low to high.
var employeeRanges = []struct {
	max   int
	label string
}{
	{10, "1-10"},
	{50, "11-50"},
	{100, "51-100"},
	{250, "101-250"},
	{500, "251-500"},
	{1000, "501-1000"},
}

// EmployeeCountRange standardizes an employee count or range string into
// one of the fixed bands ("1-10" ... "1001+"). Returns "" when the input
// carries no usable number.
func EmployeeCountRange(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	// Already a band or a range like "120-300"; key off the lower bound.
	s = strings.TrimSuffix(s, "+")
	if idx := strings.IndexAny(s, "-–"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return ""
	}
	for _, band := range employeeRanges {
		if n <= band.max {
			return band.label
		}
	}
	return "1001+"
}

// EmployeeCountMidpoint maps a standardized band to its numeric midpoint
// for similarity vectors. Unknown bands return 0, false.
func EmployeeCountMidpoint(band string) (float64, bool) {
	switch band {
	case "1-10":
		return 5.5, true
	case "11-50":
		return 30.5, true
	case "51-100":
		return 75.5, true
	case "101-250":
		return 175.5, true
	case "251-500":
		return 375.5, true
	case "501-1000":
		return 750.5, true
	case "1001+":
		return 1500, true
	}
	return 0, false
}

// Float coerces a raw JSON value into a float64. Strings with separators
// ("1,200,000") are accepted.
func Float(raw any) *float64 {
	switch v := raw.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}
