package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMpesaNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"0112345678", "254112345678"},
		{"254712345678", "254712345678"},
		{"+254 712 345 678", "254712345678"},
		{"712345678", "254712345678"},
		{"0712-345-678", "254712345678"},
	}
	for _, tt := range tests {
		got, err := SanitizeMpesaNumber(tt.in)
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSanitizeMpesaNumberRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "12345", "0812345678", "2547123456789", "255712345678"} {
		_, err := SanitizeMpesaNumber(in)
		assert.ErrorIs(t, err, ErrInvalidPhone, in)
	}
}
