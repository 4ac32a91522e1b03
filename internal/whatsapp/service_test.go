package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		in, country, want string
	}{
		{"+60 12-345 6789", "60", "60123456789"},
		{"012-345 6789", "60", "60123456789"},
		{"(012) 345 6789", "60", "60123456789"},
		{"600123456789", "60", "60123456789"},
		{"0060123456789", "60", "60123456789"},
		{"054-1234567", "972", "972541234567"},
		{"+9720541234567", "972", "972541234567"},
		{"0123456789", "", "0123456789"},
		{"+1 (415) 555-0100", "60", "14155550100"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhoneNumber(tt.in, tt.country))
		})
	}
}
