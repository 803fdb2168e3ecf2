package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorLiteral(t *testing.T) {
	cases := []struct {
		name      string
		embedding []float32
		want      string
	}{
		{"empty", nil, "[]"},
		{"single", []float32{0.5}, "[0.5]"},
		{"several", []float32{1, -2.25, 0}, "[1,-2.25,0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, vectorLiteral(tc.embedding))
		})
	}
}
