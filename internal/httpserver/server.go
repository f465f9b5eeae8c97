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

// Package httpserver implements the HTTP render endpoint and static-file
// mount described in SPEC_FULL.md's ambient CLI surface, grounded directly
// on internal/cmdserve.go's gin.New()/Logger()/Recovery() wiring and
// gin-gonic/contrib/static for the prebuilt front-end bundle; the front-end
// itself stays out of scope, only the mount point is wired up.
package httpserver

import (
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/contrib/static"
	"github.com/gin-gonic/gin"

	"github.com/hoxca/fpimageio/internal/affine"
	"github.com/hoxca/fpimageio/internal/controller"
	"github.com/hoxca/fpimageio/internal/fplog"
)

// Serve starts the HTTP server on port, blocking until it exits.
func Serve(port int, core *controller.Core) error {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(static.Serve("/", static.LocalFile("./web/build", true)))

	r.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET("/api/v1/render", func(c *gin.Context) { handleRender(c, core) })

	fplog.LogPrintf("serving on :%d", port)
	return r.Run(fmt.Sprintf(":%d", port))
}

func handleRender(c *gin.Context, core *controller.Core) {
	req, width, height, err := parseRenderRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Output = image.NewRGBA(image.Rect(0, 0, width, height))

	ctx := c.Request.Context()
	if req.ScaleMode == controller.ScaleGlobal {
		err = core.RenderWithOnTheFlyGlobalScale(ctx, req)
	} else {
		err = core.Render(ctx, req)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "image/png")
	if err := png.Encode(c.Writer, req.Output); err != nil {
		fplog.LogPrintf("render: png encode failed: %v", err)
	}
}

// parseRenderRequest builds a controller.RenderRequest from the query
// string, matching the render-parameter surface in spec section 6.
func parseRenderRequest(c *gin.Context) (controller.RenderRequest, int, int, error) {
	index := c.Query("index")
	if index == "" {
		return controller.RenderRequest{}, 0, 0, fmt.Errorf("missing required query parameter %q", "index")
	}

	width, err := strconv.Atoi(c.DefaultQuery("width", "2048"))
	if err != nil || width <= 0 {
		return controller.RenderRequest{}, 0, 0, fmt.Errorf("invalid width")
	}
	height, err := strconv.Atoi(c.DefaultQuery("height", "2048"))
	if err != nil || height <= 0 {
		return controller.RenderRequest{}, 0, 0, fmt.Errorf("invalid height")
	}

	scaleMode := controller.ScaleAmplifier
	if c.Query("scaleMode") == "GLOBAL" {
		scaleMode = controller.ScaleGlobal
	}

	req := controller.RenderRequest{
		IndexDescriptor: index,
		Colormap:        c.DefaultQuery("colormap", "grey"),
		BiasKind:        c.DefaultQuery("bias", "None"),
		ShowBiasRegion:  c.Query("showBiasRegion") == "true",
		WCSLetter:       wcsLetterOrDefault(c.DefaultQuery("wcsLetter", "Q")),
		ScaleMode:       scaleMode,
	}

	if r := c.Query("sourceRect"); r != "" {
		rect, err := parseRect(r)
		if err != nil {
			return controller.RenderRequest{}, 0, 0, err
		}
		req.SourceRect = &rect
	}

	return req, width, height, nil
}

func wcsLetterOrDefault(s string) byte {
	if len(s) != 1 {
		return 'Q'
	}
	return s[0]
}

// parseRect parses "x,y,w,h" into an affine.Rect.
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
