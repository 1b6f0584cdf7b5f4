package main

import (
	"fmt"
	"strings"

	"github.com/SonwYang/gdaltools"

	godal "github.com/airbusgeo/godal"
	"github.com/spf13/cobra"
)

var resamplingAlgs = map[string]godal.ResamplingAlg{
	"nearest":  godal.Nearest,
	"bilinear": godal.Bilinear,
	"cubic":    godal.Cubic,
	"average":  godal.Average,
	"mode":     godal.Mode,
}

func rasterCommands() []*cobra.Command {
	return []*cobra.Command{
		stretchCommand(), resampleCommand(), rasterizeCommand(), sampleClipCommand(), zonalCommand(),
	}
}

func stretchCommand() *cobra.Command {
	var (
		in, out            string
		imgMin, imgMax     float64
		lowerPct, upperPct float64
	)
	cmd := &cobra.Command{
		Use:   "stretch",
		Short: "Percentile stretch every band of an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := toolbox.StretchImage(in, out, imgMin, imgMax, lowerPct, upperPct); err != nil {
				return err
			}
			done("stretched %s -> %s", in, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input raster")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output raster")
	cmd.Flags().Float64Var(&imgMin, "min", 0, "target minimum value")
	cmd.Flags().Float64Var(&imgMax, "max", 255, "target maximum value")
	cmd.Flags().Float64Var(&lowerPct, "lower", 0, "lower percentile")
	cmd.Flags().Float64Var(&upperPct, "upper", 100, "higher percentile")
	markRequired(cmd, "in", "out")
	return cmd
}

func resampleCommand() *cobra.Command {
	var (
		in, out, alg string
		scale        float64
	)
	cmd := &cobra.Command{
		Use:   "resample",
		Short: "Resample an image by a pixel scale factor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ra, ok := resamplingAlgs[strings.ToLower(alg)]
			if !ok {
				return fmt.Errorf("unknown resampling %q", alg)
			}
			if err := toolbox.ResampleImage(in, out, scale, ra); err != nil {
				return err
			}
			done("resampled %s -> %s", in, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input raster")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output raster")
	cmd.Flags().Float64Var(&scale, "scale", gdaltools.DefaultResampleScale, "pixel scaling")
	cmd.Flags().StringVar(&alg, "alg", "nearest", "resampling: nearest|bilinear|cubic|average|mode")
	markRequired(cmd, "in", "out")
	return cmd
}

func rasterizeCommand() *cobra.Command {
	var (
		shp, template, out, field string
		nodata                    float64
	)
	cmd := &cobra.Command{
		Use:   "rasterize",
		Short: "Burn a polygon attribute into a raster aligned with a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := toolbox.PolygonToRaster(shp, template, out, field, nodata); err != nil {
				return err
			}
			done("rasterized %s -> %s", shp, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&shp, "shp", "", "polygon shapefile")
	cmd.Flags().StringVar(&template, "template", "", "template raster")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output raster")
	cmd.Flags().StringVar(&field, "field", "", "attribute to burn")
	cmd.Flags().Float64Var(&nodata, "nodata", 0, "nodata value")
	markRequired(cmd, "shp", "template", "out", "field")
	return cmd
}

func sampleClipCommand() *cobra.Command {
	var (
		shp, in, out, sampleType, field string
		size, start                     int
	)
	cmd := &cobra.Command{
		Use:   "sample-clip",
		Short: "Clip image chips around sample points",
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := toolbox.SampleClip(shp, in, out, sampleType, size,
				gdaltools.WithSampleField(field), gdaltools.WithSampleStart(start))
			if err != nil {
				return err
			}
			done("%d samples written to %s, next number %d", next-start, out, next)
			return nil
		},
	}
	cmd.Flags().StringVar(&shp, "shp", "", "sample point shapefile")
	cmd.Flags().StringVarP(&in, "in", "i", "", "input raster")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory")
	cmd.Flags().StringVar(&sampleType, "type", gdaltools.SampleTypePoly, "sample type: poly|line")
	cmd.Flags().IntVar(&size, "size", 256, "chip size in pixels")
	cmd.Flags().StringVar(&field, "field", gdaltools.SHP_FIELD_CLS, "class field name")
	cmd.Flags().IntVar(&start, "start", 1, "first sample number")
	markRequired(cmd, "shp", "in", "out")
	return cmd
}

func zonalCommand() *cobra.Command {
	var (
		in, shp string
		stats   []string
	)
	cmd := &cobra.Command{
		Use:   "zonal",
		Short: "Zonal statistics of raster band 1 written back to each polygon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ret, err := toolbox.ZonalStatistics(in, shp, stats...)
			if err != nil {
				return err
			}
			done("zonal statistics of %d features written to %s", len(ret), shp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input raster")
	cmd.Flags().StringVar(&shp, "shp", "", "zone shapefile, updated in place")
	cmd.Flags().StringSliceVar(&stats, "stats", []string{gdaltools.DefaultZonalStat}, "statistics, e.g. mean,max,percentile_90")
	markRequired(cmd, "in", "shp")
	return cmd
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		cmd.MarkFlagRequired(n)
	}
}
