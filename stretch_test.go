package gdaltools

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 4.0, Percentile(values, 100))
	assert.InDelta(t, 2.5, Percentile(values, 50), 1e-9)
	assert.InDelta(t, 1.75, Percentile(values, 25), 1e-9)
	// 越界按端点处理
	assert.Equal(t, 1.0, Percentile(values, -5))
	assert.Equal(t, 4.0, Percentile(values, 150))

	assert.InDelta(t, 2.5, Percentile([]float64{1, math.NaN(), 4, 2, 3}, 50), 1e-9)
	assert.Equal(t, 7.0, Percentile([]float64{7}, 30))
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.True(t, math.IsNaN(Percentile([]float64{math.NaN()}, 50)))
}

func TestStretchN(t *testing.T) {
	band := []float64{0, 10, 20, 30, 40}

	out := StretchN(band, 0, 255, 0, 100)
	require.Len(t, out, len(band))
	assert.InDelta(t, 0, out[0], 1e-4)
	assert.InDelta(t, 127.5, out[2], 1e-4)
	assert.InDelta(t, 255, out[4], 1e-4)

	// 25%-75%之外的值被截断
	out = StretchN(band, 0, 255, 25, 75)
	assert.InDelta(t, 0, out[0], 1e-4)
	assert.InDelta(t, 0, out[1], 1e-4)
	assert.InDelta(t, 127.5, out[2], 1e-4)
	assert.InDelta(t, 255, out[3], 1e-4)
	assert.InDelta(t, 255, out[4], 1e-4)

	out = StretchN(band, -1, 1, 0, 100)
	assert.InDelta(t, -1, out[0], 1e-6)
	assert.InDelta(t, 0, out[2], 1e-6)
	assert.InDelta(t, 1, out[4], 1e-6)
}

func TestStretchNDegenerate(t *testing.T) {
	out := StretchN([]float64{5, 5, 5}, 10, 200, 2, 98)
	assert.Equal(t, []float32{10, 10, 10}, out)

	assert.Empty(t, StretchN(nil, 0, 255, 2, 98))
}

func TestStretchNNaN(t *testing.T) {
	nan := math.NaN()
	out := StretchN([]float64{nan, 0, 10, nan, 20}, 0, 200, 0, 100)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(float64(out[0])))
	assert.True(t, math.IsNaN(float64(out[3])))
	assert.InDelta(t, 0, out[1], 1e-4)
	assert.InDelta(t, 100, out[2], 1e-4)
	assert.InDelta(t, 200, out[4], 1e-4)

	out = StretchN([]float64{nan, 5, 5}, 10, 200, 2, 98)
	assert.True(t, math.IsNaN(float64(out[0])))
	assert.Equal(t, []float32{10, 10}, out[1:])

	out = StretchN([]float64{nan, nan}, 0, 255, 2, 98)
	require.Len(t, out, 2)
	assert.True(t, math.IsNaN(float64(out[0])))
	assert.True(t, math.IsNaN(float64(out[1])))
}

func TestStretchRaster(t *testing.T) {
	r := &Raster{
		Width:  2,
		Height: 1,
		Bands:  [][]float64{{0, 100}, {50, 50}},
	}
	ret := StretchRaster(r, 0, 255, 0, 100)
	require.Len(t, ret, 2)
	assert.Equal(t, []float32{0, 255}, ret[0])
	assert.Equal(t, []float32{0, 0}, ret[1])
}
