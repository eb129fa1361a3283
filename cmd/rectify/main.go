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
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	nl "github.com/mlnoga/rectify/internal"
	"github.com/mlnoga/rectify/internal/curve"
	"github.com/mlnoga/rectify/internal/extract"
	"github.com/mlnoga/rectify/internal/geom"
	"github.com/mlnoga/rectify/internal/ops"
	"github.com/mlnoga/rectify/internal/raster"
	"github.com/mlnoga/rectify/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", "texture%d.png", "save extracted textures to `file`, with %d replaced by the texture id. Suffix selects png, jpg, tif or bmp")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var atlasOut = flag.String("atlas", "", "also compose all textures into one image and save it to `file`")
var background = flag.String("background", "transparent", "atlas background: transparent, a color like #e0e0e0, or checker[:color1:color2[:cell]]")
var gap = flag.Int("gap", 0, "pixels between textures in the atlas")

var minSize = flag.Int("minSize", 16, "minimum texture width and height in pixels")
var maxSize = flag.Int("maxSize", 2048, "maximum texture width and height in pixels")
var upscale = flag.Float64("upscale", 1, "scale natural texture size by this factor")
var samples = flag.Int("samples", curve.DefaultSamples, "samples per curved edge")
var curveMode = flag.String("curve", "cubic", "edge curve type for handles, cubic or quad")
var threads = flag.Int("threads", 0, "maximum threads, 0=GOMAXPROCS")
var sortVertices = flag.Bool("sort", false, "reorder the vertices of straight regions by angle, starting top left")
var filters = flag.String("filter", "", "apply filters to each texture, e.g. `median,quantize:8`")

var addr = flag.String("addr", ":8080", "listen address for serve")
var chroot = flag.String("chroot", "", "change filesystem root to `dir` before serving")
var setuid = flag.Int("setuid", -1, "change user id before serving, -1=keep")

func main() {
	logWriter := nl.LogWriter()
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Rectify Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (extract|locate|job|serve|legal|version|help) (args)

Commands:
  extract src.png x0,y0 x1,y1 x2,y2 x3,y3 [h0 h1 h2 h3] [/ more regions]
          Extract quadrilateral regions into rectangular textures. Vertices run
          top left, bottom left, bottom right, top right. Optional handles bend
          the left, bottom, right and top edges
  locate  x0,y0 x1,y1 x2,y2 x3,y3 [h0 h1 h2 h3] px,py
          Show the texture coordinates of a source image point
  job     Run the operator sequence in a JSON or YAML job file
  serve   Serve the REST API
  legal   Show license and attribution information
  version Show version information

Filters for -filter: %s

Flags:
`, os.Args[0], filterHelp())
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		*log = ""
		if *out != "" && !strings.Contains(*out, "%") {
			*log = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".log"
		}
	}
	if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			nl.LogFatalf("Unable to open logfile '%s'\n", *log)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	c := ops.NewContext(logWriter)
	if *threads > 0 {
		c.MaxThreads = *threads
	}

	// run actions
	var err error
	switch args[0] {
	case "extract":
		err = cmdExtract(args[1:], c)

	case "locate":
		err = cmdLocate(args[1:], logWriter)

	case "job":
		err = cmdJob(args[1:], c)

	case "serve":
		if err = rest.MakeSandbox(logWriter, *chroot, *setuid); err == nil {
			fmt.Fprintf(logWriter, "Serving on %s with %d threads on %s\n", *addr, c.MaxThreads, c.CPU)
			err = rest.Serve(*addr, c)
		}

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)
		fmt.Fprintf(logWriter, "Running on %s/%s, %s, %d MiB memory, %d threads\n",
			runtime.GOOS, runtime.GOARCH, c.CPU, c.MemoryMB, c.MaxThreads)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	elapsed := time.Since(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		pprof.StopCPUProfile()
		nl.LogFatalf("Error: %s\n", err.Error())
	}
	nl.LogSync()
}

// Collects the extraction flags into options
func optionsFromFlags() (opts extract.Options, err error) {
	mode, err := curve.ParseMode(*curveMode)
	if err != nil {
		return opts, err
	}
	opts = extract.Options{
		MinSize:    *minSize,
		MaxSize:    *maxSize,
		Upscale:    *upscale,
		Samples:    *samples,
		Mode:       mode,
		MaxThreads: *threads,
	}
	return opts, opts.Validate()
}

// Parses regions from groups of 4 vertices and optionally 4 handles, separated by "/"
func parseRegions(args []string, sortVertices bool) (regions []extract.Request, err error) {
	group := []geom.Point2D{}
	flush := func() error {
		var req extract.Request
		switch len(group) {
		case 4:
		case 8:
			var handles [4]geom.Point2D
			copy(handles[:], group[4:])
			req.Handles = &handles
		default:
			return errors.New(fmt.Sprintf("region %d has %d points, want 4 vertices and optionally 4 handles", len(regions), len(group)))
		}
		copy(req.Vertices[:], group[:4])
		if sortVertices {
			if req.Handles != nil {
				return errors.New(fmt.Sprintf("region %d: cannot reorder the vertices of a curved region", len(regions)))
			}
			req.Vertices = geom.OrderByAngle(req.Vertices)
		}
		regions = append(regions, req)
		group = group[:0]
		return nil
	}

	for _, arg := range args {
		if arg == "/" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		p, err := geom.ParsePoint2D(arg)
		if err != nil {
			return nil, err
		}
		group = append(group, p)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return regions, nil
}

// Builds the operator sequence for the extract command
func extractSequence(src string, regions []extract.Request, opts extract.Options) *ops.OpSequence {
	pattern := *out
	if len(regions) > 1 && pattern != "" && !strings.Contains(pattern, "%") {
		ext := filepath.Ext(pattern)
		pattern = strings.TrimSuffix(pattern, ext) + "%d" + ext
	}
	seq := ops.NewOpSequence(
		ops.NewOpLoad(0, src),
		ops.NewOpExtract(regions, opts),
		ops.NewOpFilter(*filters),
		ops.NewOpSave(pattern),
	)
	if *atlasOut != "" {
		seq.Append(ops.NewOpAtlas(*background, *gap), ops.NewOpSave(*atlasOut))
	}
	return seq
}

func cmdExtract(args []string, c *ops.Context) error {
	if len(args) < 5 {
		return errors.New("extract needs a source image and at least 4 vertices")
	}
	opts, err := optionsFromFlags()
	if err != nil {
		return err
	}
	regions, err := parseRegions(args[1:], *sortVertices)
	if err != nil {
		return err
	}
	seq := extractSequence(args[0], regions, opts)
	if m, err := json.MarshalIndent(seq, "", "  "); err == nil {
		fmt.Fprintf(c.Log, "Extracting %d regions with these settings:\n%s\n", len(regions), string(m))
	}
	_, err = seq.Run(c)
	return err
}

func cmdLocate(args []string, logWriter io.Writer) error {
	if len(args) != 5 && len(args) != 9 {
		return errors.New("locate needs 4 vertices, optionally 4 handles, and a point")
	}
	opts, err := optionsFromFlags()
	if err != nil {
		return err
	}
	regions, err := parseRegions(args[:len(args)-1], *sortVertices)
	if err != nil {
		return err
	}
	pt, err := geom.ParsePoint2D(args[len(args)-1])
	if err != nil {
		return err
	}
	req := regions[0]
	if req.Vertices.IsDegenerate() {
		return &geom.DegenerateCorrespondenceError{Which: "source", Quad: req.Vertices}
	}
	patch := curve.NewPatch(req.Vertices, req.Handles, opts.Mode, opts.Samples)
	u, v, residual, err := patch.Locate(pt)
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Point %v is at u=%.6f v=%.6f with residual %.3g pixels\n", pt, u, v, residual)
	return nil
}

func cmdJob(args []string, c *ops.Context) error {
	if len(args) != 1 {
		return errors.New("job needs exactly one job file")
	}
	seq, err := ops.LoadJob(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "Running job %s with %d steps on %d threads\n", args[0], len(seq.Steps), c.MaxThreads)
	outs, err := seq.Run(c)
	fmt.Fprintf(c.Log, "Job produced %d textures\n", len(outs))
	return err
}

// Lists the available post filters, for the usage message
func filterHelp() string {
	return strings.Join(raster.FilterNames(), ", ")
}
