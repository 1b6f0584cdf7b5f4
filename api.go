package gdaltools

import (
	gdal "github.com/airbusgeo/godal"
)

type ResamplingAlg = gdal.ResamplingAlg

// 栅格影像：每个波段按行优先存储为一维数组
type Raster struct {
	Projection   string
	GeoTransform [6]float64
	Width        int
	Height       int
	DataType     gdal.DataType
	Bands        [][]float64
}

func (r *Raster) BandCount() int {
	return len(r.Bands)
}

// 单个要素的分区统计结果，键为统计项名
type ZonalStat = map[string]float64
