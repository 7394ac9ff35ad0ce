package fixed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedPoint_Round(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"down", "10.4", "10"},
		{"up", "10.6", "11"},
		{"half to even down", "10.5", "10"},
		{"half to even up", "11.5", "12"},
		{"negative", "-3.7", "-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromString(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Round(0).String())
		})
	}
}

func TestFixedPoint_FromStringInvalid(t *testing.T) {
	_, err := FromString("abc")
	assert.Error(t, err)
}

func TestFixedPoint_MinMaxSign(t *testing.T) {
	a, b := FromInt(3, 0), FromInt(-2, 0)
	assert.True(t, a.Min(b).Eq(b))
	assert.True(t, a.Max(b).Eq(a))
	assert.Equal(t, 1, a.Sign())
	assert.Equal(t, -1, b.Sign())
	assert.Equal(t, 0, Zero.Sign())
}

func TestFixedPoint_Int64(t *testing.T) {
	v, ok := FromFloat64(-12.9).Int64()
	require.True(t, ok)
	assert.Equal(t, int64(-12), v)
	assert.True(t, FromInt(5, 0).IsInt())
	assert.False(t, FromFloat64(5.5).IsInt())
}

func TestFixedPoint_TextRoundTrip(t *testing.T) {
	var p Point
	require.NoError(t, p.UnmarshalText([]byte("101.25")))
	text, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "101.25", string(text))
}

func TestFixedMath_Statistics(t *testing.T) {
	points := []Point{FromInt(2, 0), FromInt(4, 0), FromInt(4, 0), FromInt(4, 0),
		FromInt(5, 0), FromInt(5, 0), FromInt(7, 0), FromInt(9, 0)}

	mean := Mean(points)
	assert.True(t, mean.Eq(FromInt(5, 0)), mean.String())
	assert.True(t, StdDev(points, mean).Eq(Two))

	sample, _ := SampleStdDev(points, mean).Float64()
	assert.InDelta(t, 2.138089935, sample, 1e-9)

	assert.True(t, Mean(nil).IsZero())
	assert.True(t, SampleStdDev([]Point{One}, One).IsZero())
}

func TestFixedMath_PctChange(t *testing.T) {
	assert.True(t, PctChange(FromInt(100, 0), FromInt(110, 0)).Eq(FromFloat64(0.1)))
	assert.True(t, PctChange(Zero, One).IsZero())
}

func TestFixedConstants_Bps(t *testing.T) {
	assert.True(t, FromBps(FromInt(10, 0)).Eq(FromFloat64(0.001)))
	v, _ := Sqrt252.Float64()
	assert.InDelta(t, 15.874507866, v, 1e-9)
}

func TestFixedRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Add(FromInt(i, 0))
	}

	assert.True(t, rb.IsFull())
	assert.Equal(t, 3, rb.Size())
	assert.Equal(t, "5", rb.Get(0).String())
	assert.Equal(t, "3", rb.Get(2).String())
	assert.Equal(t, []Point{FromInt(3, 0), FromInt(4, 0), FromInt(5, 0)}, rb.ToSliceFifo())
	assert.True(t, rb.Mean().Eq(FromInt(4, 0)))
	assert.True(t, rb.SampleStdDev().Eq(One))

	assert.Panics(t, func() { rb.Get(3) })
	assert.Panics(t, func() { NewRingBuffer(0) })
}
