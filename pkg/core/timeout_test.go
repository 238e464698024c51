package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeout(t *testing.T) {
	def := 10 * time.Second
	tests := []struct {
		name  string
		input interface{}
		want  time.Duration
	}{
		{"nil uses default", nil, def},
		{"empty string uses default", "", def},
		{"duration", 3 * time.Second, 3 * time.Second},
		{"int seconds", 20, 20 * time.Second},
		{"int64 seconds", int64(2), 2 * time.Second},
		{"float seconds", 0.3, 300 * time.Millisecond},
		{"numeric string", "0.5", 500 * time.Millisecond},
		{"go duration", "20s", 20 * time.Second},
		{"go duration minutes", "1m", time.Minute},
		{"go compound", "1m30s", 90 * time.Second},
		{"milliseconds", "500ms", 500 * time.Millisecond},
		{"spelled out", "1 min 30 s", 90 * time.Second},
		{"spelled out words", "2 seconds", 2 * time.Second},
		{"upper case", "3 Seconds", 3 * time.Second},
		{"spaced go duration", " 1m 5s ", 65 * time.Second},
		{"zero int uses default", 0, def},
		{"zero duration uses default", time.Duration(0), def},
		{"zero string uses default", "0", def},
		{"zero go duration uses default", "0s", def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeout(tt.input, def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeout_Invalid(t *testing.T) {
	inputs := []interface{}{
		-1,
		-0.5,
		"-5",
		"-2s",
		-3 * time.Second,
		"abc",
		"10 parsecs",
		"5 s later",
		[]string{"10s"},
	}

	for _, in := range inputs {
		_, err := ParseTimeout(in, time.Second)
		if !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("ParseTimeout(%#v) error = %v, want ErrInvalidTimeout", in, err)
		}
	}
}

func TestParseTimeout_NonPositiveDefault(t *testing.T) {
	_, err := ParseTimeout(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	_, err = ParseTimeout(0, 0)
	assert.ErrorIs(t, err, ErrInvalidTimeout, "zero needs a default to fall back on")
}
