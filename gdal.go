package gdaltools

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/SonwYang/gdaltools/log"
	"github.com/SonwYang/gdaltools/utils"

	godal "github.com/airbusgeo/godal"
	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

type GdalToolbox struct {
	tmpDir string
	logTag string
}

// 由GDAL库C语言创建的内存对象，需要手动调用Destroy回收
type destroyable interface {
	Destroy()
}

var (
	emptyGeometry = gdal.Geometry{}
	registerOnce  sync.Once
)

// 初始化GDAL工具箱，tmpDir为可选的临时目录路径（未提供的话为当前目录下的temp）
func NewGdalToolbox(tmpDir ...string) *GdalToolbox {
	registerOnce.Do(godal.RegisterAll)
	g := &GdalToolbox{
		tmpDir: "./temp",
		logTag: "GdalToolbox:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

func (g *GdalToolbox) TmpDir() string {
	return g.tmpDir
}

func (g *GdalToolbox) getSrid(sp gdal.SpatialReference) (srid int, err error) {
	wkt, _ := sp.ToWKT()
	log.Debug(g.logTag+"spatial ref attrs", zap.String("attr", wkt))
	rawId, ok := sp.AttrValue("AUTHORITY", 1)
	if !ok {
		if strings.Contains(wkt, "CGCS_2000") {
			rawId = "4490"
		} else {
			err = ErrVoidSrid
			return
		}
	}
	srid, err = strconv.Atoi(rawId)
	log.Info(g.logTag+"got srid from sp", zap.String("id", rawId))
	return
}

// 获取shp的srid
func (g *GdalToolbox) GetSridOfShapefile(shp string) (srid int, err error) {
	ds, layer, err := g.openShp(shp, false)
	if err != nil {
		return
	}
	defer ds.Destroy()
	return g.getSrid(layer.SpatialReference())
}

// 打开shp并返回其第一个图层
func (g *GdalToolbox) openShp(shp string, update bool) (ds gdal.DataSource, layer gdal.Layer, err error) {
	mode := 0
	if update {
		mode = 1
	}
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, mode)
	if !ok {
		log.Error(g.logTag+"open shp failed", zap.String("shp", shp), zap.Bool("update", update))
		err = ErrGdalDriverOpen
		return
	}
	if ds.LayerCount() == 0 {
		ds.Destroy()
		err = ErrGdalEmptyShp
		return
	}
	layer = ds.LayerByIndex(0)
	return
}

// 新建shp（已存在的同名文件会被先删除）及其图层，坐标系沿用ref
func (g *GdalToolbox) createShp(shp string, ref gdal.SpatialReference, gt gdal.GeometryType) (ds gdal.DataSource, layer gdal.Layer, err error) {
	log.Info(g.logTag+"output shp file", zap.String("shp", shp))
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	if utils.FileExists(shp) {
		if e := driver.Delete(shp); e != nil {
			log.Warn(g.logTag+"delete old shp failed", zap.String("shp", shp), zap.Error(e))
		}
	}
	ds, ok := driver.Create(shp, nil)
	if !ok {
		err = ErrGdalDriverCreate
		return
	}
	layer = ds.CreateLayer(utils.GetFilenameWithoutExt(shp), ref, gt, []string{ENCODING_OPTION})
	if layer == (gdal.Layer{}) {
		ds.Destroy()
		err = ErrGdalLayerCreate
	}
	return
}

// 在图层中按名称查找字段，找不到时再尝试GBK编码的字段名
func fieldIndex(def gdal.FeatureDefinition, name string) int {
	return fieldIndexExcept(def, name, nil)
}

// 同fieldIndex，跳过taken中已被其它名称占用的字段
func fieldIndexExcept(def gdal.FeatureDefinition, name string, taken map[int]bool) int {
	keys := []string{name}
	if gbk, e := utils.Utf8StrToGbk(name); e == nil && gbk != name {
		keys = append(keys, gbk)
	}
	for _, key := range keys {
		for _, n := range dbfFieldNames(key) {
			if idx := def.FieldIndex(n); idx >= 0 && !taken[idx] {
				return idx
			}
		}
	}
	return -1
}

// 字段名写入shp后可能的名称：超过10字节时截断，截断后重名则改为前8字节加_1至_9
func dbfFieldNames(name string) (names []string) {
	names = []string{name}
	if len(name) <= DBF_FIELD_NAME_LEN {
		return
	}
	names = append(names, name[:DBF_FIELD_NAME_LEN])
	for i := 1; i < 10; i++ {
		names = append(names, name[:DBF_FIELD_NAME_LEN-2]+"_"+strconv.Itoa(i))
	}
	return
}

// 检查shp中是否存在指定字段
func (g *GdalToolbox) checkField(shp, field string) (err error) {
	ds, layer, err := g.openShp(shp, false)
	if err != nil {
		return
	}
	defer ds.Destroy()
	if fieldIndex(layer.Definition(), field) < 0 {
		err = fmt.Errorf("%w: "+ErrColumnMissingTemplate, ErrInvalidParam, field)
	}
	return
}

// 确保图层中存在指定的实数字段，返回字段序号并记入taken
func (g *GdalToolbox) ensureRealField(layer gdal.Layer, name string, width, precision int, taken map[int]bool) (idx int, err error) {
	defer func() {
		if err == nil && taken != nil {
			taken[idx] = true
		}
	}()
	if idx = fieldIndexExcept(layer.Definition(), name, taken); idx >= 0 {
		return
	}
	fd := gdal.CreateFieldDefinition(name, gdal.FT_Real)
	defer fd.Destroy()
	if width > 0 {
		fd.SetWidth(width)
		fd.SetPrecision(precision)
	}
	if err = layer.CreateField(fd, true); err != nil {
		log.Error(g.logTag+"create field failed", zap.String("field", name), zap.Error(err))
		return
	}
	// shp字段名超过10个字符时会被截断，新字段总在末尾
	idx = layer.Definition().FieldCount() - 1
	return
}

// 将几何体写为输出图层中的新要素
func (g *GdalToolbox) addFeature(layer gdal.Layer, geo gdal.Geometry) (err error) {
	feature := layer.Definition().Create()
	defer feature.Destroy()
	if err = feature.SetGeometry(geo); err != nil {
		log.Error(g.logTag+"err in set geom of feature", zap.Error(err))
		return
	}
	if err = layer.Create(feature); err != nil {
		log.Error(g.logTag+"err in create feature of layer", zap.Error(err))
	}
	return
}

// 逐个遍历图层要素，fn返回错误时停止
func eachFeature(layer gdal.Layer, fn func(feature *gdal.Feature) error) (err error) {
	layer.ResetReading()
	var feature *gdal.Feature
	for {
		if feature = layer.NextFeature(); feature == nil {
			return
		}
		err = fn(feature)
		feature.Destroy()
		if err != nil {
			return
		}
	}
}
