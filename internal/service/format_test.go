package service

import (
	"testing"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in   domain.Money
		want string
	}{
		{0, "R$ 0,00"},
		{5, "R$ 0,05"},
		{9990, "R$ 99,90"},
		{123450, "R$ 1.234,50"},
		{123456789, "R$ 1.234.567,89"},
		{-5000, "-R$ 50,00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatBRL(tt.in))
		})
	}
}

func TestFormatDateBR(t *testing.T) {
	assert.Equal(t, "04/06/2024", formatDateBR("2024-06-04"))
	assert.Equal(t, "junk", formatDateBR("junk"))
}
