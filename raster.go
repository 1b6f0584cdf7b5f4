package gdaltools

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/SonwYang/gdaltools/log"
	"github.com/SonwYang/gdaltools/utils"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

var defaultGeoTransform = [6]float64{0, 1, 0, 0, 0, 1}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// 输出Tif的像元类型：8位→Byte，16位→UInt16，其余→Float32
func outputDataType(dt gdal.DataType) gdal.DataType {
	switch dt {
	case gdal.Byte:
		return gdal.Byte
	case gdal.Int16, gdal.UInt16:
		return gdal.UInt16
	default:
		return gdal.Float32
	}
}

func (g *GdalToolbox) openRaster(tif string) (ds *gdal.Dataset, err error) {
	ds, err = gdal.Open(tif, gdal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open tif failed", zap.String("tif", tif), zap.Error(err))
		err = fmt.Errorf("%w: %s", ErrInvalidTif, tif)
	}
	return
}

func (g *GdalToolbox) geoTransformOf(ds *gdal.Dataset) [6]float64 {
	gt, err := ds.GeoTransform()
	if err != nil {
		log.Warn(g.logTag+"tif without geotransform, use default", zap.Error(err))
		return defaultGeoTransform
	}
	return gt
}

// 读取影像的投影、仿射变换参数、尺寸及全部波段数据
func (g *GdalToolbox) ReadImage(tif string) (r *Raster, err error) {
	ds, err := g.openRaster(tif)
	if err != nil {
		return
	}
	defer ds.Close()
	st := ds.Structure()
	r = &Raster{
		Projection:   ds.Projection(),
		GeoTransform: g.geoTransformOf(ds),
		Width:        st.SizeX,
		Height:       st.SizeY,
		DataType:     st.DataType,
	}
	bands := ds.Bands()
	r.Bands = make([][]float64, len(bands))
	log.Info(g.logTag+"start read tif", zap.String("tif", tif), zap.Int("bands", len(bands)),
		zap.Int("width", r.Width), zap.Int("height", r.Height), zap.String("dt", st.DataType.String()))
	for i, band := range bands {
		r.Bands[i] = make([]float64, r.Width*r.Height)
		if err = band.Read(0, 0, r.Bands[i], r.Width, r.Height); err != nil {
			log.Error(g.logTag+"read tif band failed", zap.Int("band", i+1), zap.Error(err))
			err = ErrTifReadFailed
			return
		}
	}
	return
}

// 将影像写为GeoTiff
func (g *GdalToolbox) WriteImage(tif string, r *Raster) (err error) {
	if r == nil || len(r.Bands) == 0 || r.Width <= 0 || r.Height <= 0 {
		err = ErrEmptyTif
		return
	}
	n := r.Width * r.Height
	for _, band := range r.Bands {
		if len(band) != n {
			err = ErrWrongBufferSize
			return
		}
	}
	dt := outputDataType(r.DataType)
	ds, err := gdal.Create(gdal.GTiff, tif, len(r.Bands), dt, r.Width, r.Height)
	if err != nil {
		log.Error(g.logTag+"create tif failed", zap.String("tif", tif), zap.Error(err))
		return
	}
	defer func() {
		if e := ds.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if err = g.setGeoRef(ds, r.GeoTransform, r.Projection); err != nil {
		return
	}
	for i, band := range ds.Bands() {
		if err = band.Write(0, 0, r.Bands[i], r.Width, r.Height); err != nil {
			log.Error(g.logTag+"write tif band failed", zap.Int("band", i+1), zap.Error(err))
			err = ErrTifWriteFailed
			return
		}
	}
	log.Info(g.logTag+"tif written", zap.String("tif", tif), zap.Int("bands", len(r.Bands)), zap.String("dt", dt.String()))
	return
}

func (g *GdalToolbox) setGeoRef(ds *gdal.Dataset, gt [6]float64, proj string) (err error) {
	if err = ds.SetGeoTransform(gt); err != nil {
		log.Error(g.logTag+"set geotransform failed", zap.Error(err))
		return
	}
	if proj != "" {
		if err = ds.SetProjection(proj); err != nil {
			log.Error(g.logTag+"set projection failed", zap.Error(err))
		}
	}
	return
}

// 影像重采样：scale为像元缩放倍数，输出行列数为原来的scale倍，alg默认最邻近
func (g *GdalToolbox) ResampleImage(src, dst string, scale float64, alg ...ResamplingAlg) (err error) {
	if !(scale > 0) {
		err = fmt.Errorf("%w: scale %v", ErrInvalidParam, scale)
		return
	}
	sds, err := g.openRaster(src)
	if err != nil {
		return
	}
	defer sds.Close()
	bands := sds.Bands()
	if len(bands) == 0 {
		err = fmt.Errorf("%w: no band in %s", ErrInvalidParam, src)
		return
	}
	st := sds.Structure()
	cols := int(float64(st.SizeX) * scale)
	rows := int(float64(st.SizeY) * scale)
	if cols == 0 || rows == 0 {
		err = fmt.Errorf("%w: scale %v too small", ErrInvalidParam, scale)
		return
	}
	gt := g.geoTransformOf(sds)
	gt[1] /= scale // 像元宽度
	gt[5] /= scale // 像元高度
	resampling := gdal.Nearest
	if len(alg) > 0 {
		resampling = alg[0]
	}
	if utils.FileExists(dst) {
		if e := os.Remove(dst); e != nil {
			log.Warn(g.logTag+"remove old tif failed", zap.String("tif", dst), zap.Error(e))
		}
	}
	dt := bands[0].Structure().DataType
	log.Info(g.logTag+"start resample tif", zap.String("src", src), zap.String("dst", dst), zap.Float64("scale", scale),
		zap.Int("cols", cols), zap.Int("rows", rows), zap.String("alg", resampling.String()))
	tds, err := gdal.Create(gdal.GTiff, dst, len(bands), dt, cols, rows)
	if err != nil {
		log.Error(g.logTag+"create resampled tif failed", zap.Error(err))
		return
	}
	defer func() {
		if e := tds.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if err = g.setGeoRef(tds, gt, sds.Projection()); err != nil {
		return
	}
	buf := make([]float64, cols*rows)
	for i, band := range tds.Bands() {
		log.Info(g.logTag+"writing band", zap.Int("band", i+1))
		if err = bands[i].Read(0, 0, buf, cols, rows, gdal.Window(st.SizeX, st.SizeY), gdal.Resampling(resampling)); err != nil {
			log.Error(g.logTag+"read band failed", zap.Int("band", i+1), zap.Error(err))
			err = ErrTifReadFailed
			return
		}
		if err = band.Write(0, 0, buf, cols, rows); err != nil {
			log.Error(g.logTag+"write band failed", zap.Int("band", i+1), zap.Error(err))
			err = ErrTifWriteFailed
			return
		}
		nodata, hasNodata := bands[i].NoData()
		if hasNodata {
			if err = band.SetNoData(nodata); err != nil {
				return
			}
		}
		if e := setBandStats(band); e != nil {
			log.Warn(g.logTag+"set band stats failed", zap.Int("band", i+1), zap.Error(e))
		}
	}
	log.Info(g.logTag+"resample tif done", zap.String("dst", dst))
	return
}

// 统计值随数据集关闭写入文件，全部为nodata时返回错误
func setBandStats(band gdal.Band) (err error) {
	st, err := band.ComputeStatistics()
	if err != nil {
		return
	}
	return band.SetStatistics(st.Min, st.Max, st.Mean, st.Std)
}

// 以模板影像的尺寸和地理参考，将面矢量的field字段值栅格化为Int16影像
func (g *GdalToolbox) PolygonToRaster(shp, template, out, field string, nodata float64) (err error) {
	tds, err := g.openRaster(template)
	if err != nil {
		return
	}
	defer tds.Close()
	st := tds.Structure()
	gt := g.geoTransformOf(tds)
	proj := tds.Projection()

	if err = g.checkField(shp, field); err != nil {
		return
	}
	vds, err := gdal.Open(shp, gdal.VectorOnly())
	if err != nil {
		log.Error(g.logTag+"open shp failed", zap.String("shp", shp), zap.Error(err))
		err = ErrGdalDriverOpen
		return
	}
	defer vds.Close()

	xMin, yMax := gt[0], gt[3]
	xMax := xMin + gt[1]*float64(st.SizeX)
	yMin := yMax + gt[5]*float64(st.SizeY)
	switches := []string{
		"-a", field,
		"-at",
		"-ot", "Int16",
		"-a_nodata", formatFloat(nodata),
		"-te", formatFloat(xMin), formatFloat(math.Min(yMin, yMax)), formatFloat(xMax), formatFloat(math.Max(yMin, yMax)),
		"-ts", strconv.Itoa(st.SizeX), strconv.Itoa(st.SizeY),
	}
	if proj != "" {
		switches = append(switches, "-a_srs", proj)
	}
	if utils.FileExists(out) {
		if e := os.Remove(out); e != nil {
			log.Warn(g.logTag+"remove old tif failed", zap.String("tif", out), zap.Error(e))
		}
	}
	log.Info(g.logTag+"start rasterize shp", zap.String("shp", shp), zap.String("template", template),
		zap.String("out", out), zap.String("field", field))
	rds, err := vds.Rasterize(out, switches, gdal.GTiff)
	if err != nil {
		log.Error(g.logTag+"rasterize failed", zap.Error(err))
		return
	}
	err = rds.Close()
	return
}

// 对影像逐波段做百分比拉伸后输出，[imgMin, imgMax]落在0-255内时输出8位影像
func (g *GdalToolbox) StretchImage(src, dst string, imgMin, imgMax, lowerPct, higherPct float64) (err error) {
	r, err := g.ReadImage(src)
	if err != nil {
		return
	}
	stretched := StretchRaster(r, imgMin, imgMax, lowerPct, higherPct)
	for i, band := range stretched {
		for j, v := range band {
			r.Bands[i][j] = float64(v)
		}
	}
	r.DataType = gdal.Float32
	if imgMin >= 0 && imgMax <= 255 {
		r.DataType = gdal.Byte
	}
	log.Info(g.logTag+"stretch tif", zap.String("src", src), zap.Float64("lower", lowerPct), zap.Float64("higher", higherPct))
	return g.WriteImage(dst, r)
}
