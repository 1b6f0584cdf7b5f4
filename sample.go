package gdaltools

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SonwYang/gdaltools/log"
	"github.com/SonwYang/gdaltools/utils"

	godal "github.com/airbusgeo/godal"
	"github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"go.uber.org/zap"
)

const namePoint = "POINT"

type sampleOpts struct {
	fieldName string
	start     int
}

type SampleOption func(*sampleOpts)

// 样本shp中的类别字段名，默认cls
func WithSampleField(name string) SampleOption {
	return func(o *sampleOpts) {
		if name != "" {
			o.fieldName = name
		}
	}
}

// 样本起始序号，默认1
func WithSampleStart(n int) SampleOption {
	return func(o *sampleOpts) {
		if n > 0 {
			o.start = n
		}
	}
}

// 以采样点为中心的切片窗口
type chipWindow struct {
	GeoTransform [6]float64
	XOff, YOff   int
	Footprint    orb.Polygon
}

func chipAround(gt [6]float64, x, y float64, size int) (w chipWindow) {
	half := float64(size) / 2
	x1, y1 := x-half*gt[1], y-half*gt[5] // 左上
	x2, y2 := x+half*gt[1], y1           // 右上
	x3, y3 := x1, y+half*gt[5]           // 左下
	x4, y4 := x2, y3                     // 右下
	w.GeoTransform = gt
	w.GeoTransform[0] = x1
	w.GeoTransform[3] = y1
	// 向下取整，窗口越出左上边界时偏移为负
	w.XOff = int(math.Floor((x1 - gt[0]) / gt[1]))
	w.YOff = int(math.Floor((y1 - gt[3]) / gt[5]))
	w.Footprint = orb.Polygon{orb.Ring{{x1, y1}, {x2, y2}, {x4, y4}, {x3, y3}, {x1, y1}}}
	return
}

func (w chipWindow) inside(sizeX, sizeY, size int) bool {
	return w.XOff >= 0 && w.YOff >= 0 && w.XOff+size <= sizeX && w.YOff+size <= sizeY
}

func (w chipWindow) footprintWKT(asLine bool) string {
	if asLine {
		return wkt.MarshalString(orb.LineString(w.Footprint[0]))
	}
	return wkt.MarshalString(w.Footprint)
}

func sampleGeoType(sampleType string) (gt gdal.GeometryType, suffix string, err error) {
	switch {
	case utils.ContainsFold(sampleType, SampleTypePoly):
		return gdal.GT_Polygon, "_POLY", nil
	case utils.ContainsFold(sampleType, SampleTypeLine):
		return gdal.GT_LineString, "_LINE", nil
	}
	err = fmt.Errorf("%w: sample type %q", ErrInvalidParam, sampleType)
	return
}

// 根据采样点在影像上裁剪size*size的样本切片，每个样本输出tif及其范围shp
// 返回下一个可用的样本序号
func (g *GdalToolbox) SampleClip(shp, tif, outDir, sampleType string, size int, opts ...SampleOption) (next int, err error) {
	o := sampleOpts{fieldName: SHP_FIELD_CLS, start: 1}
	for _, opt := range opts {
		opt(&o)
	}
	next = o.start
	if size <= 0 {
		err = fmt.Errorf("%w: size %d", ErrInvalidParam, size)
		return
	}
	geoType, shpSuffix, err := sampleGeoType(sampleType)
	if err != nil {
		return
	}
	begin := time.Now()
	if err = utils.PrepareEmptyDir(outDir); err != nil {
		return
	}
	rds, err := g.openRaster(tif)
	if err != nil {
		return
	}
	defer rds.Close()
	st := rds.Structure()
	gt := g.geoTransformOf(rds)
	proj := rds.Projection()
	srcBands := rds.Bands()

	vds, layer, err := g.openShp(shp, false)
	if err != nil {
		return
	}
	defer vds.Destroy()
	ref := layer.SpatialReference()
	clsIdx := fieldIndex(layer.Definition(), o.fieldName)
	nf, _ := layer.FeatureCount(true)
	log.Info(g.logTag+"start sample clip", zap.Int("bands", len(srcBands)), zap.Int("samples", nf),
		zap.String("type", sampleType), zap.Int("size", size))

	buf := make([]float64, size*size)
	err = eachFeature(layer, func(feature *gdal.Feature) (e error) {
		geo := feature.Geometry()
		if geo == emptyGeometry {
			return
		}
		x, y := samplePoint(geo)
		win := chipAround(gt, x, y, size)
		if !win.inside(st.SizeX, st.SizeY, size) {
			log.Warn(g.logTag+"sample out of raster, skipped", zap.Int64("fid", feature.FID()), zap.Float64("x", x), zap.Float64("y", y))
			return
		}
		name := utils.SampleName(SampleDirTemplate, next)
		dir := filepath.Join(outDir, name+SampleDirSuffix)
		if e = os.MkdirAll(dir, os.ModePerm); e != nil {
			return
		}
		if e = g.writeChip(filepath.Join(dir, name+FILE_EXT_TIF), srcBands, st.DataType, win, proj, size, buf); e != nil {
			return
		}
		cls := ""
		if clsIdx >= 0 {
			cls = utils.EnsureUtf8(feature.FieldAsString(clsIdx))
		}
		shpPath := filepath.Join(dir, name+SampleDirSuffix+shpSuffix+FILE_EXT_SHP)
		if e = g.writeChipShp(shpPath, ref, geoType, o.fieldName, cls, win); e != nil {
			return
		}
		log.Debug(g.logTag+"sample ok", zap.String("name", name))
		next++
		return
	})
	log.Info(g.logTag+"sample clip done", zap.Int("written", next-o.start), zap.Duration("cost", time.Since(begin)))
	return
}

func samplePoint(geo gdal.Geometry) (x, y float64) {
	if strings.EqualFold(geo.Name(), namePoint) {
		x, y, _ = geo.Point(0)
		return
	}
	c := geo.Centroid()
	defer c.Destroy()
	x, y, _ = c.Point(0)
	return
}

func (g *GdalToolbox) writeChip(path string, srcBands []godal.Band, dt godal.DataType, win chipWindow, proj string, size int, buf []float64) (err error) {
	ds, err := godal.Create(godal.GTiff, path, len(srcBands), outputDataType(dt), size, size)
	if err != nil {
		log.Error(g.logTag+"create chip tif failed", zap.String("tif", path), zap.Error(err))
		return
	}
	defer func() {
		if e := ds.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if err = g.setGeoRef(ds, win.GeoTransform, proj); err != nil {
		return
	}
	for i, band := range ds.Bands() {
		if err = srcBands[i].Read(win.XOff, win.YOff, buf, size, size); err != nil {
			log.Error(g.logTag+"read chip failed", zap.Int("band", i+1), zap.Error(err))
			err = ErrTifReadFailed
			return
		}
		if err = band.Write(0, 0, buf, size, size); err != nil {
			err = ErrTifWriteFailed
			return
		}
	}
	return
}

func (g *GdalToolbox) writeChipShp(path string, ref gdal.SpatialReference, gt gdal.GeometryType, field, cls string, win chipWindow) (err error) {
	ds, layer, err := g.createShp(path, ref, gt)
	if err != nil {
		return
	}
	defer ds.Destroy()
	fd := gdal.CreateFieldDefinition(field, gdal.FT_String)
	defer fd.Destroy()
	fd.SetWidth(ClsFieldWidth)
	if err = layer.CreateField(fd, true); err != nil {
		return
	}
	geo, err := gdal.CreateFromWKT(win.footprintWKT(gt == gdal.GT_LineString), ref)
	if err != nil {
		log.Error(g.logTag+"parse footprint wkt failed", zap.Error(err))
		return
	}
	feature := layer.Definition().Create()
	defer feature.Destroy()
	feature.SetFieldString(0, cls)
	if err = feature.SetGeometryDirectly(geo); err != nil {
		geo.Destroy()
		return
	}
	err = layer.Create(feature)
	return
}
