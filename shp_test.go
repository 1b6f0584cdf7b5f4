package gdaltools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lukeroth/gdal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multiSquares = "MULTIPOLYGON (((0 0,1 0,1 1,0 1,0 0)),((5 5,6 5,6 6,5 6,5 5)))"

func TestBufferAndSmooth(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	out := filepath.Join(dir, "out.shp")
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{square(0, 0, 1)}, "")

	require.NoError(t, g.Buffer(in, out, 0.1))
	areas, _ := readTestShp(t, g, out)
	require.Len(t, areas, 1)
	assert.InDelta(t, 1.4314, areas[0], 0.01)

	// 输出已存在时覆盖
	require.NoError(t, g.Smooth(in, out, 0.1))
	areas, _ = readTestShp(t, g, out)
	require.Len(t, areas, 1)
	assert.InDelta(t, 1, areas[0], 0.01)

	assert.ErrorIs(t, g.Buffer(filepath.Join(dir, "missing.shp"), out, 1), ErrGdalDriverOpen)
}

func TestPolygonToLine(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	out := filepath.Join(dir, "line.shp")
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{square(10, 10, 2), multiSquares}, "")

	require.NoError(t, g.PolygonToLine(in, out))
	areas, names := readTestShp(t, g, out)
	require.Len(t, names, 3)
	for i, n := range names {
		assert.Equal(t, "LINESTRING", n)
		assert.Zero(t, areas[i])
	}

	pts := filepath.Join(dir, "pts.shp")
	writeTestShp(t, g, pts, gdal.GT_Point, []string{"POINT (1 1)"}, "")
	assert.ErrorIs(t, g.PolygonToLine(pts, out), ErrGdalWrongGeoType)
}

func TestMultiToSinglePart(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	out := filepath.Join(dir, "single.shp")
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{multiSquares, square(10, 10, 2)}, "")

	require.NoError(t, g.MultiToSinglePart(in, out))
	areas, names := readTestShp(t, g, out)
	assert.Equal(t, []string{"POLYGON", "POLYGON", "POLYGON"}, names)
	assert.InDeltaSlice(t, []float64{1, 1, 4}, areas, 1e-9)
}

func TestMergeShapefile(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	out := filepath.Join(dir, "merged.shp")
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{square(0, 0, 1), square(0.5, 0, 1)}, "")

	require.NoError(t, g.MergeShapefile(in, out))
	areas, _ := readTestShp(t, g, out)
	require.Len(t, areas, 1)
	assert.InDelta(t, 1.5, areas[0], 1e-9)

	empty := filepath.Join(dir, "empty.shp")
	writeTestShp(t, g, empty, gdal.GT_Polygon, nil, "")
	assert.ErrorIs(t, g.MergeShapefile(empty, out), ErrGdalEmptyShp)
}

func TestIntersection(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.shp")
	b := filepath.Join(dir, "b.shp")
	out := filepath.Join(dir, "inter.shp")
	writeTestShp(t, g, a, gdal.GT_Polygon, []string{square(0, 0, 1)}, "")
	writeTestShp(t, g, b, gdal.GT_Polygon, []string{square(0.5, 0, 1), square(5, 5, 1)}, "")

	require.NoError(t, g.Intersection(a, b, out))
	areas, _ := readTestShp(t, g, out)
	require.Len(t, areas, 1)
	assert.InDelta(t, 0.5, areas[0], 1e-9)
}

func TestRemoveFeaturesByArea(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	big := filepath.Join(dir, "big.shp")
	small := filepath.Join(dir, "small.shp")
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{square(0, 0, 1), square(5, 5, 0.5), square(9, 9, 2)}, "")

	require.NoError(t, g.RemoveSmallFeatures(in, big, 0.5))
	areas, _ := readTestShp(t, g, big)
	assert.InDeltaSlice(t, []float64{1, 4}, areas, 1e-9)

	require.NoError(t, g.RemoveBigFeatures(in, small, 1))
	areas, _ = readTestShp(t, g, small)
	assert.InDeltaSlice(t, []float64{1, 0.25}, areas, 1e-9)

	// 面积写入输出的Area字段
	ds, layer, err := g.openShp(small, false)
	require.NoError(t, err)
	defer ds.Destroy()
	idx := fieldIndex(layer.Definition(), SHP_FIELD_AREA)
	require.GreaterOrEqual(t, idx, 0)
	feature := layer.NextFeature()
	require.NotNil(t, feature)
	defer feature.Destroy()
	assert.InDelta(t, 1, feature.FieldAsFloat64(idx), 1e-9)

	maxArea, err := g.ComputeMaxArea(in)
	require.NoError(t, err)
	assert.InDelta(t, 4, maxArea, 1e-9)
}

func TestSimplify(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	out := filepath.Join(dir, "simple.shp")
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{
		"POLYGON ((0 0,0.5 0.001,1 0,1 1,0 1,0 0))",
	}, SHP_FIELD_CLS, "farm")

	require.NoError(t, g.Simplify(in, out, 0.01))
	ds, layer, err := g.openShp(out, false)
	require.NoError(t, err)
	defer ds.Destroy()
	feature := layer.NextFeature()
	require.NotNil(t, feature)
	defer feature.Destroy()
	assert.Equal(t, "farm", feature.FieldAsString(fieldIndex(layer.Definition(), SHP_FIELD_CLS)))
	geo := feature.Geometry()
	assert.Equal(t, 5, geo.Geometry(0).PointCount())
	assert.InDelta(t, 1, geo.Area(), 1e-9)
}

func TestExtractIsolatedFeatures(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	out := filepath.Join(dir, "isolated.shp")
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{
		square(0, 0, 1),
		square(1.05, 0, 1),
		square(10, 10, 0.5),
	}, "")

	require.NoError(t, g.ExtractIsolatedFeatures(in, out, 0.1))
	areas, _ := readTestShp(t, g, out)
	require.Len(t, areas, 1)
	assert.InDelta(t, 0.25, areas[0], 1e-6)

	// 中间文件已清理
	entries, err := os.ReadDir(g.TmpDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractIsolatedFeaturesLargest(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	out := filepath.Join(dir, "isolated.shp")
	// 孤立要素的缓冲区是所有单个缓冲区中最大的，但小于相邻两要素合并后的缓冲区
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{
		square(0, 0, 1),
		square(1.05, 0, 1),
		square(10, 10, 1.2),
	}, "")

	require.NoError(t, g.ExtractIsolatedFeatures(in, out, 0.1))
	areas, _ := readTestShp(t, g, out)
	require.Len(t, areas, 1)
	assert.InDelta(t, 1.44, areas[0], 1e-6)
}

func TestExtractIsolatedFeaturesNone(t *testing.T) {
	g := newTestToolbox(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.shp")
	out := filepath.Join(dir, "isolated.shp")
	writeTestShp(t, g, in, gdal.GT_Polygon, []string{square(0, 0, 1), square(1.05, 0, 1)}, "")

	require.NoError(t, g.ExtractIsolatedFeatures(in, out, 0.1, filepath.Join(dir, "work")))
	areas, _ := readTestShp(t, g, out)
	assert.Empty(t, areas)

	assert.ErrorIs(t, g.ExtractIsolatedFeatures(filepath.Join(dir, "missing.shp"), out, 0.1), ErrGdalDriverOpen)
}
