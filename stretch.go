package gdaltools

import (
	"math"
	"sort"
)

// 计算p分位数（0-100），在相邻秩之间线性插值；忽略NaN
func Percentile(values []float64, p float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	p = math.Max(0, math.Min(100, p))
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// 按百分比截断拉伸到[imgMin, imgMax]，如8bit影像为[0, 255]
// NaN不参与百分位计算，输出中保持为NaN
func StretchN(band []float64, imgMin, imgMax, lowerPct, higherPct float64) []float32 {
	out := make([]float32, len(band))
	sorted := make([]float64, 0, len(band))
	for _, v := range band {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	nan := float32(math.NaN())
	if len(sorted) == 0 {
		for i := range out {
			out[i] = nan
		}
		return out
	}
	sort.Float64s(sorted)
	c := percentileSorted(sorted, lowerPct)
	d := percentileSorted(sorted, higherPct)
	a, b := imgMin, imgMax
	for i, v := range band {
		if math.IsNaN(v) {
			out[i] = nan
			continue
		}
		if d == c {
			out[i] = float32(a)
			continue
		}
		t := a + (v-c)*(b-a)/(d-c)
		if t < a {
			t = a
		} else if t > b {
			t = b
		}
		out[i] = float32(t)
	}
	return out
}

// 对影像的每个波段分别做百分比拉伸
func StretchRaster(r *Raster, imgMin, imgMax, lowerPct, higherPct float64) [][]float32 {
	ret := make([][]float32, len(r.Bands))
	for i, band := range r.Bands {
		ret[i] = StretchN(band, imgMin, imgMax, lowerPct, higherPct)
	}
	return ret
}
