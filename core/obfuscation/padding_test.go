package obfuscation

import (
	"bytes"
	"testing"

	"github.com/gocircum/obfsmeter/pkg/securerandom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaddingZeroMaxIsIdentity(t *testing.T) {
	p, err := NewPadding(0, 0, securerandom.NewSeeded(1))
	require.NoError(t, err)

	input := []byte("unchanged")
	for i := 0; i < 20; i++ {
		out, err := p.Apply(input)
		require.NoError(t, err)
		assert.Equal(t, input, out)
		assert.True(t, &out[0] == &input[0], "identity must not allocate")
	}
}

func TestPaddingBounds(t *testing.T) {
	tests := []struct {
		name string
		min  int
		max  int
	}{
		{"original_defaults", 0, 50},
		{"fixed", 8, 8},
		{"narrow", 3, 5},
		{"wide", 100, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPadding(tt.min, tt.max, securerandom.NewSeeded(99))
			require.NoError(t, err)

			input := bytes.Repeat([]byte{'x'}, 500)
			for i := 0; i < 500; i++ {
				out, err := p.Apply(input)
				require.NoError(t, err)
				added := len(out) - len(input)
				require.GreaterOrEqual(t, added, tt.min)
				require.LessOrEqual(t, added, tt.max)
				require.Equal(t, input, out[:len(input)])
			}
		})
	}
}

func TestPaddingZeroDrawReturnsInput(t *testing.T) {
	p, err := NewPadding(0, 1, securerandom.NewSeeded(5))
	require.NoError(t, err)

	input := []byte("abc")
	var sawZero, sawOne bool
	for i := 0; i < 200 && !(sawZero && sawOne); i++ {
		out, err := p.Apply(input)
		require.NoError(t, err)
		switch len(out) {
		case len(input):
			sawZero = true
			assert.True(t, &out[0] == &input[0])
		case len(input) + 1:
			sawOne = true
		}
	}
	assert.True(t, sawZero)
	assert.True(t, sawOne)
}

func TestPaddingInvalidConfig(t *testing.T) {
	_, err := NewPadding(-1, 10, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, KindPadding, cfgErr.Kind)

	_, err = NewPadding(10, 5, nil)
	require.ErrorAs(t, err, &cfgErr)
}
