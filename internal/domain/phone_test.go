package domain_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		countryCode string
		want        string
	}{
		{"already e164 with punctuation", "+55 (11) 98765-4321", "55", "+5511987654321"},
		{"local number gets country code", "(11) 98765-4321", "55", "+5511987654321"},
		{"trunk zero dropped", "011 98765-4321", "55", "+5511987654321"},
		{"international 00 prefix", "0044 20 7946 0958", "55", "+442079460958"},
		{"country code without plus", "5511987654321", "55", "+5511987654321"},
		{"short number starting with country digits is local", "55987654321", "55", "+5555987654321"},
		{"country code given with plus", "11987654321", "+55", "+5511987654321"},
		{"dots and slashes", "11.98765/4321", "55", "+5511987654321"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.NormalizePhone(tt.raw, tt.countryCode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"letters", "call me"},
		{"too short", "123"},
		{"zero after plus", "+0119876543"},
		{"too long", "+1234567890123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NormalizePhone(tt.raw, "55")
			var v *domain.ErrValidation
			require.True(t, errors.As(err, &v), "got %v", err)
			assert.Equal(t, "phone", v.Field)
		})
	}
}
