package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare domain", input: "acme.io", expected: "acme.io"},
		{name: "scheme stripped", input: "https://acme.io", expected: "acme.io"},
		{name: "www stripped", input: "http://www.acme.io", expected: "acme.io"},
		{name: "path and query stripped", input: "https://www.acme.io/about?ref=home", expected: "acme.io"},
		{name: "port stripped", input: "acme.io:8080", expected: "acme.io"},
		{name: "fragment stripped", input: "acme.io#team", expected: "acme.io"},
		{name: "uppercased host", input: "HTTPS://ACME.IO", expected: "acme.io"},
		{name: "subdomain kept", input: "https://app.acme.io/login", expected: "app.acme.io"},
		{name: "not a domain", input: "acme", expected: ""},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Domain(tt.input))
		})
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *time.Time
	}{
		{name: "iso date", input: "2014-03-01", expected: timePtr(2014, 3, 1)},
		{name: "year month", input: "2014-03", expected: timePtr(2014, 3, 1)},
		{name: "year only", input: "2014", expected: timePtr(2014, 1, 1)},
		{name: "us format", input: "03/01/2014", expected: timePtr(2014, 3, 1)},
		{name: "garbage", input: "soonish", expected: nil},
		{name: "empty", input: "", expected: nil},
		{name: "impossible date", input: "2014-13-45", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Date(tt.input)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.expected.Equal(*got), "expected %v got %v", tt.expected, got)
		})
	}
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []string
	}{
		{name: "comma separated", input: "Fintech, SaaS, Payments", expected: []string{"fintech", "payments", "saas"}},
		{name: "json array string", input: `["SaaS","Fintech"]`, expected: []string{"fintech", "saas"}},
		{name: "decoded array", input: []any{"SaaS", "saas", "Fintech"}, expected: []string{"fintech", "saas"}},
		{name: "single value", input: "Fintech", expected: []string{"fintech"}},
		{name: "blank entries dropped", input: "Fintech, , ,SaaS", expected: []string{"fintech", "saas"}},
		{name: "nil", input: nil, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokens(tt.input))
		})
	}
}

func TestEmployeeCountRange(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "7", expected: "1-10"},
		{input: "120", expected: "101-250"},
		{input: "101-250", expected: "101-250"},
		{input: "120-300", expected: "101-250"},
		{input: "1001+", expected: "1001+"},
		{input: "5,000", expected: "1001+"},
		{input: "unknown", expected: ""},
		{input: "", expected: ""},
		{input: "0", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, EmployeeCountRange(tt.input))
		})
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "suffix removed", input: "John Smith Jr.", expected: "john smith"},
		{name: "punctuation dropped", input: "O'Brien, Conor", expected: "obrien conor"},
		{name: "whitespace collapsed", input: "  Jane \t Doe  ", expected: "jane doe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanName(tt.input))
		})
	}
}

func timePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
