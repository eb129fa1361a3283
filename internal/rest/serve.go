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

// Package rest exposes texture extraction over HTTP.
package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/rectify/internal/curve"
	"github.com/mlnoga/rectify/internal/extract"
	"github.com/mlnoga/rectify/internal/geom"
	"github.com/mlnoga/rectify/internal/ops"
)

type server struct {
	base *ops.Context
}

// Creates the API router. Requests run with a copy of the given context,
// restricted to relative file paths below the working directory
func NewRouter(base *ops.Context) *gin.Engine {
	s := &server{base: base}
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/extract", s.postExtract)
			v1.POST("/locate", postLocate)
			v1.POST("/job", s.postJob)
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func Serve(addr string, base *ops.Context) error {
	return NewRouter(base).Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Returns a per-request operator context logging to the given writer
func (s *server) context(c *gin.Context, log io.Writer) *ops.Context {
	rc := *s.base
	rc.Log = log
	rc.SafePaths = true
	rc.Ctx = c.Request.Context()
	return &rc
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

type postExtractArgs struct {
	Source   string           `json:"source" binding:"required"`
	Vertices geom.Quad        `json:"vertices"`
	Handles  *[4]geom.Point2D `json:"handles,omitempty"`
	Options  extract.Options  `json:"options"`
	Filters  string           `json:"filters"`
}

// Extracts one texture from a source image on the server and returns it as PNG
func (s *server) postExtract(c *gin.Context) {
	args := postExtractArgs{Options: extract.DefaultOptions()}
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var log bytes.Buffer
	req := extract.Request{Vertices: args.Vertices, Handles: args.Handles}
	seq := ops.NewOpSequence(
		ops.NewOpLoad(0, args.Source),
		ops.NewOpExtract([]extract.Request{req}, args.Options),
		ops.NewOpFilter(args.Filters),
	)
	outs, err := seq.Run(s.context(c, &lockedWriter{w: &log}))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "log": log.String()})
		return
	}
	if len(outs) != 1 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%d textures extracted, want 1", len(outs))})
		return
	}

	var png bytes.Buffer
	if err := outs[0].Buffer.Write(&png, "png"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png.Bytes())
}

// Maps extraction errors caused by the request geometry to 422, everything else to 400
func statusFor(err error) int {
	var dce *geom.DegenerateCorrespondenceError
	var ios *extract.InvalidOutputSizeError
	if errors.As(err, &dce) || errors.As(err, &ios) || errors.Is(err, extract.ErrNonFiniteHandles) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

type postLocateArgs struct {
	Vertices geom.Quad        `json:"vertices"`
	Handles  *[4]geom.Point2D `json:"handles,omitempty"`
	Curve    curve.Mode       `json:"curve"`
	Point    geom.Point2D     `json:"point"`
}

// Finds the normalized texture coordinates of a source image point
func postLocate(c *gin.Context) {
	var args postLocateArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Vertices.IsDegenerate() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "degenerate quadrilateral"})
		return
	}
	patch := curve.NewPatch(args.Vertices, args.Handles, args.Curve, curve.DefaultSamples)
	u, v, residual, err := patch.Locate(args.Point)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"u": u, "v": v, "residual": residual})
}

// Runs an operator sequence, streaming the log back as plain text
func (s *server) postJob(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seq, err := ops.ParseJob(raw, c.ContentType() == "application/yaml" || c.ContentType() == "application/x-yaml")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := c.Writer
	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	log := &lockedWriter{w: logWriter}
	if err := printArgs(log, "Job:\n", "\n", seq); err != nil {
		fmt.Fprintf(log, "Error printing arguments: %s\n", err.Error())
		return
	}
	if _, err := seq.Run(s.context(c, log)); err != nil {
		fmt.Fprintf(log, "error: %s\n", err.Error())
	}
	logWriter.Flush()
}

// Serializes writes from concurrently running operators
type lockedWriter struct {
	mutex sync.Mutex
	w     io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.w.Write(p)
}
