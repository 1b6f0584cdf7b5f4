package gdaltools

import (
	"fmt"
	"strings"

	"github.com/SonwYang/gdaltools/log"
	"github.com/SonwYang/gdaltools/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

func (g *GdalToolbox) vectorTranslate(shp, out string, openOpts, opts []string) (err error) {
	sds, err := gdal.OpenEx(shp, gdal.OFVector, nil, openOpts, nil)
	if err != nil {
		log.Error(g.logTag+"open shp error", zap.String("shp", shp), zap.Error(err))
		return
	}
	defer sds.Close()
	dds, err := gdal.VectorTranslate(out, []gdal.Dataset{sds}, opts)
	if err != nil {
		log.Error(g.logTag+"VectorTranslate failed", zap.String("out", out), zap.Error(err))
		return
	}
	dds.Close()
	return
}

// 从shp文件转化生成GeoJSON文件，可通过dstSrid指定目标srid（默认4326）
func (g *GdalToolbox) ShapefileToGeoJSON(shp string, dstSrid ...int) (out string, err error) {
	tSrid := GEOJSON_SRID
	if len(dstSrid) > 0 && dstSrid[0] > 0 {
		tSrid = dstSrid[0]
	}
	out = strings.TrimSuffix(shp, FILE_EXT_SHP) + fmt.Sprintf("_%d"+FILE_EXT_JSON, tSrid)
	log.Info(g.logTag+"start geojson shp", zap.String("shp", shp), zap.Int("srid", tSrid))
	err = g.vectorTranslate(shp, out, nil, []string{"-f", "GeoJSON", "-t_srs", fmt.Sprintf("epsg:%d", tSrid)})
	return
}

// 转换shp的坐标系，输出为<原名>_<srid>.shp；坐标系已一致时直接返回原文件
func (g *GdalToolbox) TransformShapefile(shp string, tSrid int) (out string, err error) {
	srid, err := g.GetSridOfShapefile(shp)
	if err == nil && srid == tSrid {
		out = shp
		return
	}
	out = strings.TrimSuffix(shp, FILE_EXT_SHP) + fmt.Sprintf("_%d"+FILE_EXT_SHP, tSrid)
	log.Info(g.logTag+"start transform shp", zap.String("shp", shp), zap.Int("from", srid), zap.Int("to", tSrid))
	err = g.vectorTranslate(shp, out, nil, []string{"-t_srs", fmt.Sprintf("epsg:%d", tSrid), "-lco", ENCODING_OPTION})
	return
}

// 将shp的文本编码转为UTF-8；cpg为空时读取同名cpg文件，非UTF-8的都当作GBK处理
func (g *GdalToolbox) EncodingShapefile(shp, cpg string, rmOld bool) (out string, err error) {
	if cpg == "" {
		cpg = utils.GetShpEncoding(shp)
	}
	if utils.IsUtf8Encoding(cpg) {
		out = shp
		return
	}
	enc := cpg
	if enc == "" {
		enc = ZH_ENC
	}
	out = strings.TrimSuffix(shp, FILE_EXT_SHP) + "_" + enc + FILE_EXT_SHP
	log.Info(g.logTag+"start encoding shp", zap.String("shp", shp), zap.String("cpg", cpg))
	if err = g.vectorTranslate(shp, out, []string{OO_ENCODING}, []string{"-lco", ENCODING_OPTION}); err != nil {
		return
	}
	if rmOld {
		if e := gdal.OGRDriverByName(SHP_DRIVER_NAME).Delete(shp); e != nil {
			log.Warn(g.logTag+"delete old shp failed", zap.Error(e))
		}
	}
	log.Info(g.logTag+"end encoding shp", zap.String("shp", out))
	return
}
