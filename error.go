package gdaltools

import "errors"

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrGdalEmptyShp     = errors.New("gdal shp is empty")
	ErrVoidSrid         = errors.New("gdal shp with void srid")
	ErrGdalWrongGeoType = errors.New("gdal wrong geo type")
	ErrGdalLayerCreate  = errors.New("gdal layer create err")
	ErrInvalidParam     = errors.New("invalid param")
	ErrInvalidTif       = errors.New("invalid tif")
	ErrEmptyTif         = errors.New("empty tif")
	ErrTifReadFailed    = errors.New("tif read failed")
	ErrTifWriteFailed   = errors.New("tif write failed")
	ErrWrongBufferSize  = errors.New("wrong buffer size")
	ErrUnknownStat      = errors.New("unknown zonal stat")
)
