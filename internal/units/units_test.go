package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	tests := []struct {
		bytes    float64
		expected Unit
	}{
		{0, Bytes},
		{1023, Bytes},
		{1024, Kilobytes},
		{1024*1024 - 1, Kilobytes},
		{1024 * 1024, Megabytes},
		{1 << 30, Gigabytes},
		{1 << 40, Gigabytes},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Find(tt.bytes), "bytes=%v", tt.bytes)
	}
}

func TestScale(t *testing.T) {
	t.Run("human picks unit per amount", func(t *testing.T) {
		v, label := Scale(1536, Human)
		assert.Equal(t, "KB", label)
		assert.InDelta(t, 1.5, v, 1e-9)

		v, label = Scale(512, Human)
		assert.Equal(t, "B", label)
		assert.InDelta(t, 512, v, 1e-9)
	})

	t.Run("fixed unit divides regardless of magnitude", func(t *testing.T) {
		v, label := Scale(512, Megabytes)
		assert.Equal(t, "MB", label)
		assert.InDelta(t, 512.0/(1<<20), v, 1e-12)

		v, label = Scale(3<<30, Kilobytes)
		assert.Equal(t, "KB", label)
		assert.InDelta(t, 3*1024*1024, v, 1e-6)
	})
}

func TestScaleUnscaleRoundTrip(t *testing.T) {
	amounts := []float64{0, 1, 100, 1023, 1024, 4097, 1 << 20, 123456789, 5 << 30, 1 << 50}
	unitsUnderTest := []Unit{Human, Bytes, Kilobytes, Megabytes, Gigabytes}

	for _, u := range unitsUnderTest {
		for _, x := range amounts {
			v, label := Scale(x, u)
			back, err := Unscale(v, label)
			require.NoError(t, err)
			assert.True(t, math.Abs(back-x) <= 1e-9*math.Max(1, x), "unit=%s x=%v back=%v", u, x, back)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Unit
	}{
		{"", Human},
		{"auto", Human},
		{"HUMAN", Human},
		{"b", Bytes},
		{"Bytes", Bytes},
		{"KB", Kilobytes},
		{"k", Kilobytes},
		{"mb", Megabytes},
		{"GB", Gigabytes},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			u, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u)
		})
	}

	_, err := Parse("TB")
	assert.Error(t, err)
}

func TestUnscaleRejectsUnknownLabel(t *testing.T) {
	_, err := Unscale(1, "??")
	assert.Error(t, err)

	_, err = Unscale(1, "auto")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.50 MB", Format(1.5*(1<<20), Human))
	assert.Equal(t, "0.00 GB", Format(1024, Gigabytes))
	assert.Equal(t, "10.00 B", Format(10, Human))
}
