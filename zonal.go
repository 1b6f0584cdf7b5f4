package gdaltools

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SonwYang/gdaltools/log"

	godal "github.com/airbusgeo/godal"
	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

const (
	StatCount      = "count"
	StatMin        = "min"
	StatMax        = "max"
	StatMean       = "mean"
	StatSum        = "sum"
	StatStd        = "std"
	StatMedian     = "median"
	StatMajority   = "majority"
	StatMinority   = "minority"
	StatUnique     = "unique"
	StatRange      = "range"
	statPercentile = "percentile_"
)

var knownStats = map[string]struct{}{
	StatCount: {}, StatMin: {}, StatMax: {}, StatMean: {}, StatSum: {}, StatStd: {},
	StatMedian: {}, StatMajority: {}, StatMinority: {}, StatUnique: {}, StatRange: {},
}

func parsePercentileStat(stat string) (p float64, ok bool) {
	if !strings.HasPrefix(stat, statPercentile) {
		return
	}
	p, err := strconv.ParseFloat(strings.TrimPrefix(stat, statPercentile), 64)
	ok = err == nil && p >= 0 && p <= 100
	return
}

func checkStats(stats []string) error {
	for _, s := range stats {
		if _, ok := knownStats[s]; ok {
			continue
		}
		if _, ok := parsePercentileStat(s); ok {
			continue
		}
		return fmt.Errorf("%w: %q", ErrUnknownStat, s)
	}
	return nil
}

// 计算一组像元值的统计量；无像元时返回nil
func computeStats(values []float64, stats []string) ZonalStat {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := float64(len(sorted))
	var sum, sq float64
	for _, v := range sorted {
		sum += v
		sq += v * v
	}
	mean := sum / n
	ret := make(ZonalStat, len(stats))
	for _, s := range stats {
		switch s {
		case StatCount:
			ret[s] = n
		case StatMin:
			ret[s] = sorted[0]
		case StatMax:
			ret[s] = sorted[len(sorted)-1]
		case StatMean:
			ret[s] = mean
		case StatSum:
			ret[s] = sum
		case StatStd:
			ret[s] = math.Sqrt(math.Max(0, sq/n-mean*mean))
		case StatMedian:
			ret[s] = percentileSorted(sorted, 50)
		case StatMajority, StatMinority:
			ret[s] = modalValue(sorted, s == StatMajority)
		case StatUnique:
			ret[s] = float64(countUnique(sorted))
		case StatRange:
			ret[s] = sorted[len(sorted)-1] - sorted[0]
		default:
			if p, ok := parsePercentileStat(s); ok {
				ret[s] = percentileSorted(sorted, p)
			}
		}
	}
	return ret
}

// 出现次数最多（most为false时最少）的值，次数相同取较小值
func modalValue(sorted []float64, most bool) (val float64) {
	best := -1
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		cnt := j - i
		if best < 0 || most && cnt > best || !most && cnt < best {
			best = cnt
			val = sorted[i]
		}
		i = j
	}
	return
}

func countUnique(sorted []float64) (n int) {
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			n++
		}
	}
	return
}

// 像素窗口：与要素外包框相交的影像范围
type pixelWindow struct {
	XOff, YOff, Width, Height int
}

func envelopeWindow(gt [6]float64, minX, maxX, minY, maxY float64, sizeX, sizeY int) (w pixelWindow, ok bool) {
	c0 := (minX - gt[0]) / gt[1]
	c1 := (maxX - gt[0]) / gt[1]
	r0 := (maxY - gt[3]) / gt[5]
	r1 := (minY - gt[3]) / gt[5]
	col0 := int(math.Floor(math.Min(c0, c1)))
	col1 := int(math.Ceil(math.Max(c0, c1)))
	row0 := int(math.Floor(math.Min(r0, r1)))
	row1 := int(math.Ceil(math.Max(r0, r1)))
	col0, row0 = max(col0, 0), max(row0, 0)
	col1, row1 = min(col1, sizeX), min(row1, sizeY)
	if col1 <= col0 || row1 <= row0 {
		return
	}
	return pixelWindow{col0, row0, col1 - col0, row1 - row0}, true
}

// 分区统计：对shp中每个面要素统计影像第一个波段中心落入面内的有效像元，
// 结果写回shp（缺失的统计字段自动新建），并按要素顺序返回
func (g *GdalToolbox) ZonalStatistics(tif, shp string, stats ...string) (ret []ZonalStat, err error) {
	if len(stats) == 0 {
		stats = []string{DefaultZonalStat}
	}
	if err = checkStats(stats); err != nil {
		return
	}
	begin := time.Now()
	rds, err := g.openRaster(tif)
	if err != nil {
		return
	}
	defer rds.Close()
	bands := rds.Bands()
	if len(bands) == 0 {
		err = ErrEmptyTif
		return
	}
	band := bands[0]
	st := rds.Structure()
	gt := g.geoTransformOf(rds)
	nodata, hasNodata := band.NoData()

	ds, layer, err := g.openShp(shp, true)
	if err != nil {
		return
	}
	defer ds.Destroy()
	fieldIdx := make([]int, len(stats))
	taken := make(map[int]bool, len(stats))
	for i, s := range stats {
		if fieldIdx[i], err = g.ensureRealField(layer, s, 0, 0, taken); err != nil {
			return
		}
	}
	log.Info(g.logTag+"start zonal statistics", zap.String("tif", tif), zap.String("shp", shp), zap.Strings("stats", stats))

	err = eachFeature(layer, func(feature *gdal.Feature) (e error) {
		var values []float64
		if geo := feature.Geometry(); geo != emptyGeometry {
			if values, e = g.zoneValues(band, geo, gt, st.SizeX, st.SizeY, nodata, hasNodata); e != nil {
				return
			}
		}
		zs := computeStats(values, stats)
		ret = append(ret, zs)
		if zs == nil {
			return
		}
		for i, s := range stats {
			feature.SetFieldFloat64(fieldIdx[i], zs[s])
		}
		return layer.SetFeature(*feature)
	})
	log.Info(g.logTag+"zonal statistics done", zap.Int("features", len(ret)), zap.Duration("cost", time.Since(begin)))
	return
}

// 读取要素外包框窗口内的像元，并以内存栅格烧录要素得到掩膜，返回掩膜内的有效值
func (g *GdalToolbox) zoneValues(band godal.Band, geo gdal.Geometry, gt [6]float64, sizeX, sizeY int, nodata float64, hasNodata bool) (values []float64, err error) {
	env := geo.Envelope()
	win, ok := envelopeWindow(gt, env.MinX(), env.MaxX(), env.MinY(), env.MaxY(), sizeX, sizeY)
	if !ok {
		return
	}
	n := win.Width * win.Height
	pixels := make([]float64, n)
	if err = band.Read(win.XOff, win.YOff, pixels, win.Width, win.Height); err != nil {
		log.Error(g.logTag+"read zone window failed", zap.Error(err))
		err = ErrTifReadFailed
		return
	}
	mask, err := g.burnMask(geo, gt, win)
	if err != nil {
		return
	}
	for i, v := range pixels {
		if mask[i] == 0 || math.IsNaN(v) || hasNodata && v == nodata {
			continue
		}
		values = append(values, v)
	}
	return
}

func (g *GdalToolbox) burnMask(geo gdal.Geometry, gt [6]float64, win pixelWindow) (mask []byte, err error) {
	wkb, err := geo.ToWKB()
	if err != nil {
		return
	}
	zone, err := godal.NewGeometryFromWKB(wkb, nil)
	if err != nil {
		log.Error(g.logTag+"parse zone wkb failed", zap.Error(err))
		return
	}
	defer zone.Close()
	mds, err := godal.Create(godal.Memory, "", 1, godal.Byte, win.Width, win.Height)
	if err != nil {
		return
	}
	defer mds.Close()
	wgt := gt
	wgt[0] = gt[0] + float64(win.XOff)*gt[1] + float64(win.YOff)*gt[2]
	wgt[3] = gt[3] + float64(win.XOff)*gt[4] + float64(win.YOff)*gt[5]
	if err = mds.SetGeoTransform(wgt); err != nil {
		return
	}
	if err = mds.RasterizeGeometry(zone, godal.Values(1)); err != nil {
		log.Error(g.logTag+"burn zone failed", zap.Error(err))
		return
	}
	mask = make([]byte, win.Width*win.Height)
	err = mds.Bands()[0].Read(0, 0, mask, win.Width, win.Height)
	return
}
