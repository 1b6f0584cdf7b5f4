package main

import (
	"github.com/SonwYang/gdaltools"

	"github.com/spf13/cobra"
)

type ioFlags struct {
	in, out string
}

// 输入输出均为shp的一元操作
func shpCommand(use, short string, run func(f *ioFlags) error) (*cobra.Command, *ioFlags) {
	f := &ioFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(f); err != nil {
				return err
			}
			done("%s %s -> %s", use, f.in, f.out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.in, "in", "i", "", "input shapefile")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output shapefile")
	markRequired(cmd, "in", "out")
	return cmd, f
}

func distCommand(use, short string, def float64, run func(f *ioFlags, dist float64) error) *cobra.Command {
	var dist float64
	cmd, _ := shpCommand(use, short, func(f *ioFlags) error {
		return run(f, dist)
	})
	cmd.Flags().Float64Var(&dist, "dist", def, "distance in layer units")
	return cmd
}

func thresholdCommand(use, short, name string, def float64, run func(f *ioFlags, t float64) error) *cobra.Command {
	var t float64
	cmd, _ := shpCommand(use, short, func(f *ioFlags) error {
		return run(f, t)
	})
	cmd.Flags().Float64Var(&t, name, def, name)
	return cmd
}

func vectorCommands() []*cobra.Command {
	buffer := distCommand("buffer", "Buffer every feature", gdaltools.DefaultBufferDistance, func(f *ioFlags, d float64) error {
		return toolbox.Buffer(f.in, f.out, d)
	})
	smooth := distCommand("smooth", "Smooth polygons by buffering out and back in", gdaltools.DefaultSmoothDistance, func(f *ioFlags, d float64) error {
		return toolbox.Smooth(f.in, f.out, d)
	})
	isolated := distCommand("isolated", "Extract features without neighbours within a distance", gdaltools.DefaultIsolatedDistance, func(f *ioFlags, d float64) error {
		return toolbox.ExtractIsolatedFeatures(f.in, f.out, d, toolbox.TmpDir())
	})
	simplify := thresholdCommand("simplify", "Simplify geometries preserving topology", "tolerance", gdaltools.DefaultSimplifyT, func(f *ioFlags, t float64) error {
		return toolbox.Simplify(f.in, f.out, t)
	})
	removeBig := thresholdCommand("remove-big", "Keep features whose area is not above the threshold", "threshold", 0, func(f *ioFlags, t float64) error {
		return toolbox.RemoveBigFeatures(f.in, f.out, t)
	})
	removeSmall := thresholdCommand("remove-small", "Keep features whose area is not below the threshold", "threshold", 0, func(f *ioFlags, t float64) error {
		return toolbox.RemoveSmallFeatures(f.in, f.out, t)
	})
	pol2line, _ := shpCommand("pol2line", "Convert polygon boundaries to lines", func(f *ioFlags) error {
		return toolbox.PolygonToLine(f.in, f.out)
	})
	singlepart, _ := shpCommand("singlepart", "Explode multipart polygons into single parts", func(f *ioFlags) error {
		return toolbox.MultiToSinglePart(f.in, f.out)
	})
	merge, _ := shpCommand("merge", "Union all features into one", func(f *ioFlags) error {
		return toolbox.MergeShapefile(f.in, f.out)
	})

	var other string
	intersect, _ := shpCommand("intersect", "Pairwise intersection of two shapefiles", func(f *ioFlags) error {
		return toolbox.Intersection(f.in, other, f.out)
	})
	intersect.Flags().StringVar(&other, "with", "", "second shapefile")
	markRequired(intersect, "with")

	return []*cobra.Command{
		buffer, smooth, simplify, pol2line, singlepart, merge, intersect,
		removeBig, removeSmall, isolated, maxAreaCommand(),
		geojsonCommand(), transformCommand(), encodingCommand(),
	}
}

func maxAreaCommand() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "max-area",
		Short: "Print the largest feature area",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := toolbox.ComputeMaxArea(in)
			if err != nil {
				return err
			}
			done("max area of %s: %v", in, a)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input shapefile")
	markRequired(cmd, "in")
	return cmd
}

func geojsonCommand() *cobra.Command {
	var (
		in   string
		srid int
	)
	cmd := &cobra.Command{
		Use:   "geojson",
		Short: "Convert a shapefile to GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := toolbox.ShapefileToGeoJSON(in, srid)
			if err != nil {
				return err
			}
			done("geojson written to %s", o)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input shapefile")
	cmd.Flags().IntVar(&srid, "srid", gdaltools.GEOJSON_SRID, "target srid")
	markRequired(cmd, "in")
	return cmd
}

func transformCommand() *cobra.Command {
	var (
		in   string
		srid int
	)
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Reproject a shapefile",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := toolbox.TransformShapefile(in, srid)
			if err != nil {
				return err
			}
			done("reprojected shapefile written to %s", o)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input shapefile")
	cmd.Flags().IntVar(&srid, "srid", gdaltools.GEOJSON_SRID, "target srid")
	markRequired(cmd, "in")
	return cmd
}

func encodingCommand() *cobra.Command {
	var (
		in, cpg string
		rmOld   bool
	)
	cmd := &cobra.Command{
		Use:   "encoding",
		Short: "Re-encode shapefile attributes to UTF-8",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := toolbox.EncodingShapefile(in, cpg, rmOld)
			if err != nil {
				return err
			}
			done("re-encoded shapefile written to %s", o)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input shapefile")
	cmd.Flags().StringVar(&cpg, "cpg", "", "source encoding, read from .cpg when empty")
	cmd.Flags().BoolVar(&rmOld, "rm", false, "remove the source shapefile")
	markRequired(cmd, "in")
	return cmd
}
