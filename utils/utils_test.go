package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUniqSubDir(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "a", "b")
	d1, err := GetUniqSubDir(parent)
	require.NoError(t, err)
	d2, err := GetUniqSubDir(parent)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
	assert.Equal(t, parent, filepath.Dir(d1))
	assert.True(t, FileExists(d1))
}

func TestPrepareEmptyDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, PrepareEmptyDir(dir))
	assert.True(t, FileExists(dir))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))
	require.NoError(t, PrepareEmptyDir(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestShpEncoding(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "a.shp")
	assert.Equal(t, "", GetShpEncoding(shp))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cpg"), []byte("utf-8\n"), 0o644))
	assert.Equal(t, UTF_8, GetShpEncoding(shp))
	assert.True(t, IsUtf8Encoding("utf8"))
	assert.False(t, IsUtf8Encoding("GBK"))
	assert.Equal(t, "a", GetFilenameWithoutExt(shp))
}

func TestGbk(t *testing.T) {
	gbk, err := Utf8StrToGbk("面积")
	require.NoError(t, err)
	assert.NotEqual(t, "面积", gbk)
	assert.Len(t, gbk, 4)
	back, err := GbkStrToUtf8(gbk)
	require.NoError(t, err)
	assert.Equal(t, "面积", back)
	assert.Equal(t, "面积", EnsureUtf8(gbk))
	assert.Equal(t, "水体", EnsureUtf8("水体\x00"))
}

func TestStrHelpers(t *testing.T) {
	assert.True(t, ContainsFold("Polygon", "POLY"))
	assert.Equal(t, "ab", PurifyForUtf8("a\x00b\xff"))
	assert.Equal(t, "00000012", SampleName("%08d", 12))
}
