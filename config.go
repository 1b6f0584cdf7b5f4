package gdaltools

const (
	FILE_EXT_SHP    = ".shp"
	FILE_EXT_TIF    = ".tif"
	FILE_EXT_JSON   = ".json"
	SHAPE_ENCODING  = "UTF-8"
	ZH_ENC          = "GBK"
	SHP_DRIVER_NAME = "ESRI Shapefile"
	ENCODING_OPTION = "ENCODING=" + SHAPE_ENCODING
	OO_ENCODING     = "ENCODING=" + ZH_ENC
	GEOJSON_SRID    = 4326

	DBF_FIELD_NAME_LEN = 10

	ErrColumnMissingTemplate = `shp文件中缺失【%s】字段`

	// 各操作的默认参数
	DefaultBufferDistance   = 0.02
	DefaultSmoothDistance   = 0.001
	DefaultIsolatedDistance = 0.008
	DefaultSimplifyT        = 0.0001
	DefaultResampleScale    = 5.0
	DefaultBufferSegs       = 30

	SHP_FIELD_AREA     = "Area"
	AreaFieldWidth     = 32
	AreaFieldPrecision = 16 // 面积精度，小数点后16位

	IsolatedAreaTolerance = 1e-9 // 相对误差

	SHP_FIELD_CLS     = "cls"
	ClsFieldWidth     = 50
	SampleTypePoly    = "poly"
	SampleTypeLine    = "line"
	SampleDirTemplate = "%08d"
	SampleDirSuffix   = "_V1"

	TMP_BUFFER  = "buffer.shp"
	TMP_BUFFER2 = "buffer2.shp"

	DefaultZonalStat = StatMajority
)
