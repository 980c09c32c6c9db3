package norm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLongDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LEGGE 7 agosto 1990, n. 241", "1990-08-07"},
		{"Decreto 1° gennaio 2000", "2000-01-01"},
		{"REGIO DECRETO 16 Marzo 1942, n. 262", "1942-03-16"},
	}
	for _, tt := range tests {
		got, ok := ParseLongDate(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, ok := ParseLongDate("nessuna data qui")
	assert.False(t, ok)
}
