package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		page, size       int
		wantFrom, wantLn int
	}{
		{page: 1, size: 10, wantFrom: 0, wantLn: 10},
		{page: 3, size: 5, wantFrom: 10, wantLn: 5},
		{page: 0, size: 0, wantFrom: 0, wantLn: DefaultPageSize},
		{page: -2, size: 1000, wantFrom: 0, wantLn: DefaultPageSize},
	}
	for _, tc := range cases {
		from, limit := Calculate(tc.page, tc.size)
		assert.Equal(t, tc.wantFrom, from)
		assert.Equal(t, tc.wantLn, limit)
	}
}

func TestParseIntDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
}
