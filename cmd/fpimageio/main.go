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

// Command fpimageio is the core's CLI surface: a one-shot "render" subcommand
// that writes a PNG to disk, and a "serve" subcommand that starts the HTTP
// render endpoint, grounded on the subcommand-dispatch style of the
// original nightlight binary the teacher repo's internal/cmd*.go files back.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hoxca/fpimageio/internal/affine"
	"github.com/hoxca/fpimageio/internal/bytesource"
	"github.com/hoxca/fpimageio/internal/cachefab"
	"github.com/hoxca/fpimageio/internal/controller"
	"github.com/hoxca/fpimageio/internal/fplog"
	"github.com/hoxca/fpimageio/internal/httpserver"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "render":
		cmdRender(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fpimageio <render|serve> [flags]")
}

func newCore() *controller.Core {
	bytesrc := bytesource.NewCache()
	core := controller.New(controller.Config{}, bytesrc)

	go func() {
		for {
			time.Sleep(time.Minute)
			bytesrc.Sweep()
		}
	}()

	reporter := cachefab.NewReporter(60*time.Second, core.CacheSources()...)
	go reporter.Run(context.Background())

	return core
}

func cmdRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	index := fs.String("index", "", "index stream descriptor (required)")
	out := fs.String("out", "out.png", "output PNG path")
	width := fs.Int("width", 2048, "output raster width")
	height := fs.Int("height", 2048, "output raster height")
	colormap := fs.String("colormap", "grey", "colormap name")
	bias := fs.String("bias", "None", "bias-correction strategy name")
	wcsLetter := fs.String("wcsLetter", "Q", "WCS letter suffix")
	showBiasRegion := fs.Bool("showBiasRegion", false, "render overscan region instead of cropping to datasec")
	scaleMode := fs.String("scaleMode", "AMPLIFIER", "GLOBAL or AMPLIFIER")
	sourceRect := fs.String("sourceRect", "", "x,y,w,h source rectangle, empty means whole focal plane")
	fs.Parse(args)

	if *index == "" {
		fmt.Fprintln(os.Stderr, "render: -index is required")
		os.Exit(1)
	}

	mode := controller.ScaleAmplifier
	if *scaleMode == "GLOBAL" {
		mode = controller.ScaleGlobal
	}

	req := controller.RenderRequest{
		IndexDescriptor: *index,
		Output:          image.NewRGBA(image.Rect(0, 0, *width, *height)),
		Colormap:        *colormap,
		BiasKind:        *bias,
		ShowBiasRegion:  *showBiasRegion,
		WCSLetter:       (*wcsLetter)[0],
		ScaleMode:       mode,
	}
	if *sourceRect != "" {
		rect, err := parseRect(*sourceRect)
		if err != nil {
			fplog.LogFatal(err)
		}
		req.SourceRect = &rect
	}

	core := newCore()
	ctx := context.Background()

	var err error
	if req.ScaleMode == controller.ScaleGlobal {
		err = core.RenderWithOnTheFlyGlobalScale(ctx, req)
	} else {
		err = core.Render(ctx, req)
	}
	if err != nil {
		fplog.LogFatal(err)
	}

	f, err := os.Create(*out)
	if err != nil {
		fplog.LogFatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, req.Output); err != nil {
		fplog.LogFatal(err)
	}
	fplog.LogPrintf("wrote %s", *out)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 8080, "HTTP listen port")
	fs.Parse(args)

	core := newCore()
	if err := httpserver.Serve(*port, core); err != nil {
		fplog.LogFatal(err)
	}
}

func parseRect(s string) (affine.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return affine.Rect{}, fmt.Errorf("sourceRect must be \"x,y,w,h\"")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return affine.Rect{}, fmt.Errorf("sourceRect: %w", err)
		}
		vals[i] = v
	}
	return affine.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}
