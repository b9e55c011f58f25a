package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "reloop/pkg/domain-errors"
)

type query struct {
	UserID    string `validate:"omitempty,notblank"`
	RiskLevel string `validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	DateFrom  string `validate:"omitempty,timestamp"`
	Page      int    `validate:"gte=0"`
	Limit     int    `validate:"gte=0,lte=100"`
	Ack       string `validate:"omitempty,boolean"`
	SignalID  string `validate:"omitempty,uuid"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  query
		want string
	}{
		{"valid", query{RiskLevel: "HIGH", DateFrom: "2026-03-10T12:00:00Z", Limit: 20, Ack: "true"}, ""},
		{"blank user", query{UserID: "   "}, "user_id must not be blank"},
		{"unknown risk", query{RiskLevel: "EXTREME"}, "risk_level must be one of [LOW MEDIUM HIGH CRITICAL]"},
		{"plain date", query{DateFrom: "2026-03-01"}, ""},
		{"bad date", query{DateFrom: "yesterday"}, "date_from must be an RFC 3339 timestamp or a YYYY-MM-DD date"},
		{"bad calendar date", query{DateFrom: "2026-02-30"}, "date_from must be an RFC 3339 timestamp or a YYYY-MM-DD date"},
		{"negative page", query{Page: -1}, "page must be at least 0"},
		{"limit too large", query{Limit: 500}, "limit must be at most 100"},
		{"bad bool", query{Ack: "maybe"}, "ack must be true or false"},
		{"bad uuid", query{SignalID: "nope"}, "signal_id must be a valid uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, dateOnly, err := ParseTimestamp("2026-03-10T12:30:00+01:00")
	require.NoError(t, err)
	assert.False(t, dateOnly)
	assert.True(t, ts.Equal(time.Date(2026, 3, 10, 11, 30, 0, 0, time.UTC)))

	ts, dateOnly, err = ParseTimestamp("2026-03-10")
	require.NoError(t, err)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), ts)

	_, _, err = ParseTimestamp("10/03/2026")
	assert.Error(t, err)
}

func TestErrorMessage_NonValidatorError(t *testing.T) {
	assert.Equal(t, "invalid request", ErrorMessage(errors.New("boom")))
}
