package gdaltools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SonwYang/gdaltools/log"
	"github.com/SonwYang/gdaltools/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

const (
	namePolygon      = "POLYGON"
	nameMultiPolygon = "MULTIPOLYGON"
)

// 逐要素变换几何体：fn返回的几何体由调用方写出后回收
type geoMapper func(geo gdal.Geometry) ([]gdal.Geometry, error)

func (g *GdalToolbox) mapShapefile(in, out string, gt gdal.GeometryType, fn geoMapper) (cnt int, err error) {
	ids, inLayer, err := g.openShp(in, false)
	if err != nil {
		return
	}
	defer ids.Destroy()
	ods, outLayer, err := g.createShp(out, inLayer.SpatialReference(), gt)
	if err != nil {
		return
	}
	defer ods.Destroy() // 生成shp文件 + 释放资源
	var total int
	err = eachFeature(inLayer, func(feature *gdal.Feature) (e error) {
		total++
		geo := feature.Geometry()
		if geo == emptyGeometry {
			log.Warn(g.logTag+"feature without geometry", zap.Int64("fid", feature.FID()))
			return
		}
		gs, e := fn(geo)
		defer func() {
			for _, v := range gs {
				v.Destroy()
			}
		}()
		if e != nil {
			return
		}
		for _, v := range gs {
			if e = g.addFeature(outLayer, v); e != nil {
				return
			}
			cnt++
		}
		return
	})
	log.Info(g.logTag+"shp mapped", zap.String("in", in), zap.String("out", out), zap.Int("total", total), zap.Int("written", cnt))
	return
}

// 对每个要素做缓冲区
func (g *GdalToolbox) Buffer(in, out string, dist float64) (err error) {
	log.Info(g.logTag+"start buffer shp", zap.String("in", in), zap.Float64("dist", dist))
	_, err = g.mapShapefile(in, out, gdal.GT_Polygon, func(geo gdal.Geometry) ([]gdal.Geometry, error) {
		return []gdal.Geometry{geo.Buffer(dist, DefaultBufferSegs)}, nil
	})
	return
}

// 先膨胀再腐蚀，平滑面要素的边界
func (g *GdalToolbox) Smooth(in, out string, dist float64) (err error) {
	log.Info(g.logTag+"start smooth shp", zap.String("in", in), zap.Float64("dist", dist))
	_, err = g.mapShapefile(in, out, gdal.GT_Polygon, func(geo gdal.Geometry) ([]gdal.Geometry, error) {
		dilated := geo.Buffer(dist, DefaultBufferSegs)
		defer dilated.Destroy()
		return []gdal.Geometry{dilated.Buffer(-dist, DefaultBufferSegs)}, nil
	})
	return
}

// 面转线：取每个面（多面的每个部分）的外环
func (g *GdalToolbox) PolygonToLine(in, out string) (err error) {
	log.Info(g.logTag+"start polygon to line", zap.String("in", in))
	_, err = g.mapShapefile(in, out, gdal.GT_LineString, func(geo gdal.Geometry) (ret []gdal.Geometry, e error) {
		parts, e := polygonParts(geo)
		for _, poly := range parts {
			if poly.GeometryCount() == 0 {
				continue
			}
			ret = append(ret, ringToLine(poly.Geometry(0)))
		}
		return
	})
	return
}

// 多部件转单部件
func (g *GdalToolbox) MultiToSinglePart(in, out string) (err error) {
	log.Info(g.logTag+"start multipart to singlepart", zap.String("in", in))
	_, err = g.mapShapefile(in, out, gdal.GT_Polygon, func(geo gdal.Geometry) (ret []gdal.Geometry, e error) {
		parts, e := polygonParts(geo)
		for _, poly := range parts {
			ret = append(ret, poly.Clone())
		}
		return
	})
	return
}

// 多面返回其各部分（为geo所有，不可回收），面返回自身，其他几何体报错
func polygonParts(geo gdal.Geometry) (parts []gdal.Geometry, err error) {
	switch geo.Name() {
	case namePolygon:
		parts = []gdal.Geometry{geo}
	case nameMultiPolygon:
		parts = make([]gdal.Geometry, geo.GeometryCount())
		for i := range parts {
			parts[i] = geo.Geometry(i)
		}
	default:
		err = fmt.Errorf("%w: %s", ErrGdalWrongGeoType, geo.Name())
	}
	return
}

func ringToLine(ring gdal.Geometry) (line gdal.Geometry) {
	line = gdal.Create(gdal.GT_LineString)
	var x, y float64
	for i, np := 0, ring.PointCount(); i < np; i++ {
		x, y, _ = ring.Point(i)
		line.AddPoint2D(x, y)
	}
	return
}

// 将shp中所有要素合并为一个要素
func (g *GdalToolbox) MergeShapefile(in, out string) (err error) {
	ids, inLayer, err := g.openShp(in, false)
	if err != nil {
		return
	}
	defer ids.Destroy()
	if n, _ := inLayer.FeatureCount(true); n == 0 {
		log.Warn(g.logTag+"merge empty shp", zap.String("in", in))
		err = ErrGdalEmptyShp
		return
	}
	unionGeo, err := g.unionLayer(inLayer)
	if err != nil {
		return
	}
	defer unionGeo.Destroy()
	ods, outLayer, err := g.createShp(out, inLayer.SpatialReference(), gdal.GT_Polygon)
	if err != nil {
		return
	}
	defer ods.Destroy()
	err = g.addFeature(outLayer, unionGeo)
	log.Info(g.logTag+"shp merged", zap.String("in", in), zap.String("out", out), zap.Bool("succeed", err == nil))
	return
}

func (g *GdalToolbox) unionLayer(layer gdal.Layer) (unionGeo gdal.Geometry, err error) {
	unionGeo = gdal.Create(gdal.GT_Polygon)
	gc := []destroyable{}
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	err = eachFeature(layer, func(feature *gdal.Feature) error {
		geo := feature.Geometry()
		if geo == emptyGeometry {
			return nil
		}
		gc = append(gc, unionGeo)
		unionGeo = unionGeo.Union(geo)
		return nil
	})
	return
}

// 求A中每个要素与B中每个要素的交集，空交集不输出
func (g *GdalToolbox) Intersection(shpA, shpB, out string) (err error) {
	dsA, layerA, err := g.openShp(shpA, false)
	if err != nil {
		return
	}
	defer dsA.Destroy()
	if n, _ := layerA.FeatureCount(true); n == 0 {
		err = ErrGdalEmptyShp
		return
	}
	dsB, layerB, err := g.openShp(shpB, false)
	if err != nil {
		return
	}
	defer dsB.Destroy()
	ods, outLayer, err := g.createShp(out, layerA.SpatialReference(), gdal.GT_Unknown)
	if err != nil {
		return
	}
	defer ods.Destroy()
	defer layerB.SetSpatialFilter(emptyGeometry)
	var cnt int
	err = eachFeature(layerA, func(fa *gdal.Feature) error {
		geoA := fa.Geometry()
		if geoA == emptyGeometry {
			return nil
		}
		layerB.SetSpatialFilter(geoA) // 按外包框预筛
		return eachFeature(layerB, func(fb *gdal.Feature) (e error) {
			geoB := fb.Geometry()
			if geoB == emptyGeometry {
				return
			}
			inter := geoB.Intersection(geoA)
			defer inter.Destroy()
			if inter.IsEmpty() {
				return
			}
			if e = g.addFeature(outLayer, inter); e == nil {
				cnt++
			}
			return
		})
	})
	log.Info(g.logTag+"shp intersected", zap.String("a", shpA), zap.String("b", shpB), zap.String("out", out), zap.Int("cnt", cnt))
	return
}

// 删除面积大于阈值的要素
func (g *GdalToolbox) RemoveBigFeatures(in, out string, threshold float64) (err error) {
	return g.filterByArea(in, out, func(area float64) bool { return area <= threshold })
}

// 删除面积小于阈值的要素
func (g *GdalToolbox) RemoveSmallFeatures(in, out string, threshold float64) (err error) {
	return g.filterByArea(in, out, func(area float64) bool { return area >= threshold })
}

// 计算每个要素面积写入Area字段（输入和输出都写），仅输出keep为true的要素
func (g *GdalToolbox) filterByArea(in, out string, keep func(area float64) bool) (err error) {
	ids, inLayer, err := g.openShp(in, true)
	if err != nil {
		return
	}
	defer ids.Destroy()
	inIdx, err := g.ensureRealField(inLayer, SHP_FIELD_AREA, AreaFieldWidth, AreaFieldPrecision, nil)
	if err != nil {
		return
	}
	ods, outLayer, err := g.createShp(out, inLayer.SpatialReference(), gdal.GT_Polygon)
	if err != nil {
		return
	}
	defer ods.Destroy()
	outIdx, err := g.ensureRealField(outLayer, SHP_FIELD_AREA, AreaFieldWidth, AreaFieldPrecision, nil)
	if err != nil {
		return
	}
	outDef := outLayer.Definition()
	var total, kept int
	err = eachFeature(inLayer, func(feature *gdal.Feature) (e error) {
		total++
		geo := feature.Geometry()
		if geo == emptyGeometry {
			return
		}
		area := geo.Area()
		feature.SetFieldFloat64(inIdx, area)
		if e = inLayer.SetFeature(*feature); e != nil {
			log.Error(g.logTag+"err in set feature of layer", zap.Error(e))
			return
		}
		if !keep(area) {
			return
		}
		of := outDef.Create()
		defer of.Destroy()
		of.SetFieldFloat64(outIdx, area)
		if e = of.SetGeometry(geo); e != nil {
			return
		}
		if e = outLayer.Create(of); e == nil {
			kept++
		}
		return
	})
	log.Info(g.logTag+"shp filtered by area", zap.String("in", in), zap.String("out", out), zap.Int("total", total), zap.Int("kept", kept))
	return
}

// 计算所有要素中的最大面积，同时将面积写入Area字段
func (g *GdalToolbox) ComputeMaxArea(shp string) (maxArea float64, err error) {
	ds, layer, err := g.openShp(shp, true)
	if err != nil {
		return
	}
	defer ds.Destroy()
	idx, err := g.ensureRealField(layer, SHP_FIELD_AREA, AreaFieldWidth, AreaFieldPrecision, nil)
	if err != nil {
		return
	}
	err = eachFeature(layer, func(feature *gdal.Feature) error {
		geo := feature.Geometry()
		if geo == emptyGeometry {
			return nil
		}
		area := geo.Area()
		if area > maxArea {
			maxArea = area
		}
		feature.SetFieldFloat64(idx, area)
		return layer.SetFeature(*feature)
	})
	log.Info(g.logTag+"got max area", zap.String("shp", shp), zap.Float64("max", maxArea))
	return
}

// Douglas-Peucker简化（保持拓扑），保留属性
func (g *GdalToolbox) Simplify(in, out string, tolerance float64) (err error) {
	ids, inLayer, err := g.openShp(in, false)
	if err != nil {
		return
	}
	defer ids.Destroy()
	ods, outLayer, err := g.createShp(out, inLayer.SpatialReference(), inLayer.Type())
	if err != nil {
		return
	}
	defer ods.Destroy()
	inDef := inLayer.Definition()
	for i, n := 0, inDef.FieldCount(); i < n; i++ {
		if err = outLayer.CreateField(inDef.FieldDefinition(i), true); err != nil {
			log.Error(g.logTag+"copy field failed", zap.Int("idx", i), zap.Error(err))
			return
		}
	}
	outDef := outLayer.Definition()
	var cnt int
	err = eachFeature(inLayer, func(feature *gdal.Feature) (e error) {
		of := outDef.Create()
		defer of.Destroy()
		if e = of.SetFrom(*feature, 1); e != nil {
			log.Error(g.logTag+"copy feature failed", zap.Int64("fid", feature.FID()), zap.Error(e))
			return
		}
		if geo := feature.Geometry(); geo != emptyGeometry {
			simp := geo.SimplifyPreservingTopology(tolerance)
			e = of.SetGeometryDirectly(simp)
			if e != nil {
				simp.Destroy()
				return
			}
		}
		if e = outLayer.Create(of); e == nil {
			cnt++
		}
		return
	})
	log.Info(g.logTag+"shp simplified", zap.String("in", in), zap.String("out", out), zap.Float64("tolerance", tolerance), zap.Int("cnt", cnt))
	return
}

// 提取孤立要素：缓冲→合并→拆分→去除由多个缓冲区合并而成的区域→合并→与原要素求交
// tmpRoot为空时使用工具箱的临时目录，中间文件所在子目录在返回前删除
func (g *GdalToolbox) ExtractIsolatedFeatures(in, out string, dist float64, tmpRoot ...string) (err error) {
	root := g.tmpDir
	if len(tmpRoot) > 0 && tmpRoot[0] != "" {
		root = tmpRoot[0]
	}
	if !utils.FileExists(in) {
		err = ErrGdalDriverOpen
		return
	}
	dir, err := utils.GetUniqSubDir(root)
	if err != nil {
		return
	}
	defer os.RemoveAll(dir)
	log.Info(g.logTag+"start extract isolated features", zap.String("in", in), zap.Float64("dist", dist), zap.String("tmp", dir))
	var (
		buff  = filepath.Join(dir, TMP_BUFFER)
		buff2 = filepath.Join(dir, TMP_BUFFER2)
	)
	if err = g.Buffer(in, buff, dist); err != nil {
		return
	}
	maxArea, err := g.ComputeMaxArea(buff)
	if err != nil {
		return
	}
	if err = g.MergeShapefile(buff, buff2); err != nil {
		return
	}
	if err = g.MultiToSinglePart(buff2, buff); err != nil {
		return
	}
	// 合并后重新计算的面积与原值可能有舍入误差，最大的缓冲区本身也应保留
	if err = g.RemoveBigFeatures(buff, buff2, maxArea*(1+IsolatedAreaTolerance)); err != nil {
		return
	}
	if err = g.MergeShapefile(buff2, buff); err != nil {
		if errors.Is(err, ErrGdalEmptyShp) {
			log.Info(g.logTag+"no isolated feature found", zap.String("in", in))
			return g.createEmptyLike(in, out)
		}
		return
	}
	err = g.Intersection(buff, in, out)
	log.Info(g.logTag+"extract isolated features done", zap.String("out", out), zap.Bool("succeed", err == nil))
	return
}

// 新建与输入shp坐标系相同的空shp
func (g *GdalToolbox) createEmptyLike(in, out string) (err error) {
	ids, inLayer, err := g.openShp(in, false)
	if err != nil {
		return
	}
	defer ids.Destroy()
	ods, _, err := g.createShp(out, inLayer.SpatialReference(), inLayer.Type())
	if err != nil {
		return
	}
	ods.Destroy()
	return
}
