package gdaltools

import (
	"path/filepath"
	"testing"

	"github.com/lukeroth/gdal"
	"github.com/stretchr/testify/require"
)

func newTestToolbox(t *testing.T) *GdalToolbox {
	t.Helper()
	return NewGdalToolbox(filepath.Join(t.TempDir(), "tmp"))
}

func testRef(t *testing.T) gdal.SpatialReference {
	t.Helper()
	ref := gdal.CreateSpatialReference("")
	require.NoError(t, ref.FromEPSG(3857))
	return ref
}

// 以WKT列表生成测试shp，可附带一个字符串字段
func writeTestShp(t *testing.T, g *GdalToolbox, path string, gt gdal.GeometryType, wkts []string, field string, values ...string) {
	t.Helper()
	ref := testRef(t)
	defer ref.Destroy()
	ds, layer, err := g.createShp(path, ref, gt)
	require.NoError(t, err)
	defer ds.Destroy()
	if field != "" {
		fd := gdal.CreateFieldDefinition(field, gdal.FT_String)
		fd.SetWidth(ClsFieldWidth)
		require.NoError(t, layer.CreateField(fd, true))
		fd.Destroy()
	}
	for i, w := range wkts {
		geo, err := gdal.CreateFromWKT(w, ref)
		require.NoError(t, err)
		feature := layer.Definition().Create()
		if field != "" && i < len(values) {
			feature.SetFieldString(0, values[i])
		}
		require.NoError(t, feature.SetGeometryDirectly(geo))
		require.NoError(t, layer.Create(feature))
		feature.Destroy()
	}
}

// 读出shp中每个要素的面积及几何类型
func readTestShp(t *testing.T, g *GdalToolbox, path string) (areas []float64, names []string) {
	t.Helper()
	ds, layer, err := g.openShp(path, false)
	require.NoError(t, err)
	defer ds.Destroy()
	require.NoError(t, eachFeature(layer, func(feature *gdal.Feature) error {
		geo := feature.Geometry()
		areas = append(areas, geo.Area())
		names = append(names, geo.Name())
		return nil
	}))
	return
}

func square(x0, y0, size float64) string {
	return squareWKT(x0, y0, x0+size, y0+size)
}

func squareWKT(x0, y0, x1, y1 float64) string {
	return "POLYGON((" +
		formatFloat(x0) + " " + formatFloat(y0) + "," + formatFloat(x1) + " " + formatFloat(y0) + "," +
		formatFloat(x1) + " " + formatFloat(y1) + "," + formatFloat(x0) + " " + formatFloat(y1) + "," +
		formatFloat(x0) + " " + formatFloat(y0) + "))"
}
