// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ssec/polar2grid-sub004/internal/grid"
	"github.com/ssec/polar2grid-sub004/internal/logging"
	"github.com/ssec/polar2grid-sub004/internal/ops"
	"github.com/ssec/polar2grid-sub004/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var job  = flag.String("job", "", "read the job from JSON `file` instead of flags")
var out  = flag.String("out", "out_%s.fits", "save gridded channels to `file` pattern, %s expands to the channel name. Suffix .fits[.gz|.zst], .tif or .nc selects the format")
var log  = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")

var lon     = flag.String("lon", "", "swath longitudes from FITS `file`")
var lat     = flag.String("lat", "", "swath latitudes from FITS `file`")
var geoFill = flag.Float64("geoFill", math.NaN(), "geolocation fill value, NaN and FITS BLANK are always fill")
var fill    = flag.Float64("fill", math.NaN(), "channel fill value, overrides the policy. NaN and FITS BLANK are always fill")

var gridName   = flag.String("grid", "grid", "grid name")
var proj4      = flag.String("proj4", "+proj=longlat +datum=WGS84", "grid projection as proj4 string")
var cellWidth  = flag.Float64("cellWidth", 0.01, "grid cell width in projection units")
var cellHeight = flag.Float64("cellHeight", 0.01, "grid cell height in projection units")
var originX    = flag.Float64("originX", 0, "x coordinate of the upper left cell center")
var originY    = flag.Float64("originY", 0, "y coordinate of the upper left cell center")
var width      = flag.Int("width", 0, "grid columns, 0=derive from the swath extent")
var height     = flag.Int("height", 0, "grid rows, 0=derive from the swath extent")

var policyFile = flag.String("policy", "", "resampling policy YAML `file`")
var reader     = flag.String("reader", "", "reader name for policy lookup")
var sensor     = flag.String("sensor", "", "sensor name for policy lookup")
var product    = flag.String("product", "", "product name for policy lookup")

var strategy     = flag.String("strategy", "auto", "parallel strategy, one of auto, sequential, partition, private")
var threads      = flag.Int("threads", 0, "maximum threads, 0=all logical cores")
var memoryMB     = flag.Int("memory", 0, "MiB of memory for private accumulation buffers, 0=0.7x physical memory")
var float64Acc   = flag.Bool("float64", false, "accumulate in float64 instead of float32")
var weights      = flag.Bool("weights", false, "also write weight sums, NetCDF only")
var gridCoverage = flag.Float64("gridCoverage", 0.1, "minimum fraction of valid grid cells for a channel to be written")

var addr    = flag.String("addr", ":8080", "listen address for serve")
var chroot  = flag.String("chroot", "", "serve: change filesystem root to `dir`")
var setuid  = flag.Int("setuid", -1, "serve: change user id after binding, -1=don't")

func main() {
	logWriter:=logging.NewWriter(os.Stdout)
	start:=time.Now()
	flag.Usage=func(){
		fmt.Fprintf(logWriter, `p2g Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (resample|bbox|serve|legal|version) (name=channel.fits ...)

Commands:
  resample Resample swath channels onto a grid with elliptical weighted averaging
  bbox     Project swath geolocation and show the resolved grid and its corners
  serve    Serve the REST API
  legal    Show license and attribution information
  version  Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args:=flag.Args()
	if len(args)<1 {
		flag.Usage()
		return
	}

	// Initialize logging to file in addition to stdout, if selected
	if *log=="%auto" {
		*log=""
		if (args[0]=="resample" || args[0]=="bbox") && *out!="" {
			*log=autoLogName(*out)
		}
	}
	if *log!="" {
		if err:=logWriter.AlsoToFile(*log); err!=nil { logWriter.Fatalf("Unable to open logfile '%s'\n", *log) }
	}
	defer logWriter.Close()

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			logWriter.Fatalf("Could not create CPU profile: %s\n", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logWriter.Fatalf("Could not start CPU profile: %s\n", err)
		}
		defer pprof.StopCPUProfile()
	}

	c:=ops.NewContext(logWriter)
	if *threads>0 { c.MaxThreads=*threads }
	if *memoryMB>0 { c.ResampleMB=*memoryMB }

	ctx, stop:=signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch args[0] {
	case "resample", "bbox":
		fmt.Fprintf(logWriter, "Running on %v\n", c)
		var op ops.Operator
		if op, err=makeOperator(args[0], args[1:]); err!=nil { break }
		var m []byte
		if m, err=json.MarshalIndent(op, "", "  "); err!=nil { break }
		fmt.Fprintf(logWriter, "\nRunning %s with these settings:\n%s\n", op.GetType(), string(m))
		err=op.Run(ctx, c)

	case "serve":
		if err=rest.MakeSandbox(*chroot, *setuid, logWriter); err!=nil { break }
		err=rest.Serve(*addr, c)

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			logWriter.Fatalf("Could not create memory profile: %s\n", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f,0); err != nil {
			logWriter.Fatalf("Could not write allocation profile: %s\n", err)
		}
	}

	if err!=nil {
		logWriter.Fatalf("Error: %s\n", err.Error())
	}
}

// Log file name for an output pattern: channel placeholder and suffixes removed
func autoLogName(pattern string) string {
	name:=strings.ReplaceAll(pattern, "_%s", "")
	name=strings.ReplaceAll(name, "%s", "")
	for _, c:=range []string{".gz", ".gzip", ".zst"} { name=strings.TrimSuffix(name, c) }
	return strings.TrimSuffix(name, filepath.Ext(name))+".log"
}

// Builds the operator for a command from the job file, or else from flags and channel arguments
func makeOperator(cmd string, channelArgs []string) (ops.Operator, error) {
	if *job!="" {
		raw, err:=os.ReadFile(*job)
		if err!=nil { return nil, errors.Wrap(err, "reading job") }
		op, err:=ops.Decode(raw)
		if err!=nil { return nil, errors.Wrapf(err, "job %s", *job) }
		if op.GetType()!=cmd { return nil, errors.Errorf("job %s is of type %s, not %s", *job, op.GetType(), cmd) }
		return op, nil
	}

	sf, err:=swathFromFlags(channelArgs)
	if err!=nil { return nil, err }
	g:=grid.Definition{Name:*gridName, Proj4:*proj4, CellWidth:*cellWidth, CellHeight:*cellHeight,
	                   OriginX:*originX, OriginY:*originY, Width:*width, Height:*height}
	if cmd=="bbox" {
		op:=ops.NewOpBBoxDefault()
		op.Swaths, op.Grid=[]ops.SwathFiles{sf}, g
		return op, nil
	}

	op:=ops.NewOpResampleDefault()
	op.Swaths, op.Grid=[]ops.SwathFiles{sf}, g
	op.PolicyFile, op.Reader, op.Sensor, op.Product=*policyFile, *reader, *sensor, *product
	if err:=op.Strategy.UnmarshalText([]byte(*strategy)); err!=nil { return nil, err }
	op.Float64, op.Weights, op.GridCoverage, op.Output=*float64Acc, *weights, *gridCoverage, *out
	if isSet("fill") { f:=*fill; op.Fill=&f }
	return op, nil
}

// Collects geolocation flags and name=file channel arguments into swath files
func swathFromFlags(channelArgs []string) (ops.SwathFiles, error) {
	sf:=ops.SwathFiles{Lon:*lon, Lat:*lat}
	if sf.Lon=="" || sf.Lat=="" { return sf, errors.New("need -lon and -lat geolocation files") }
	if isSet("geoFill") { f:=*geoFill; sf.GeoFill=&f }
	for _, arg:=range channelArgs {
		name, file, ok:=strings.Cut(arg, "=")
		if !ok {
			file=arg
			name=filepath.Base(arg)
			for _, c:=range []string{".gz", ".gzip", ".zst"} { name=strings.TrimSuffix(name, c) }
			name=strings.TrimSuffix(name, filepath.Ext(name))
		}
		sf.Channels=append(sf.Channels, ops.ChannelFile{Name:name, File:file})
	}
	return sf, nil
}

// Returns true if the named flag was given on the command line
func isSet(name string) (set bool) {
	flag.Visit(func(f *flag.Flag) { if f.Name==name { set=true } })
	return set
}
