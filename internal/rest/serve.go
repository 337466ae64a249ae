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


package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssec/polar2grid-sub004/internal/logging"
	"github.com/ssec/polar2grid-sub004/internal/metrics"
	"github.com/ssec/polar2grid-sub004/internal/ops"
)

// Creates the HTTP API. Jobs run with the machine settings of the given context,
// and file names are restricted to the working directory tree.
func NewRouter(base *ops.Context) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), metrics.Middleware())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET ("/ping",     getPing)
			v1.POST("/resample", postJob(base, func() ops.Operator { return ops.NewOpResampleDefault() }))
			v1.POST("/bbox",     postJob(base, func() ops.Operator { return ops.NewOpBBoxDefault() }))
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func Serve(addr string, base *ops.Context) error {
	return NewRouter(base).Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m,err:=json.MarshalIndent(args, "", "  ")
	if err!=nil { return err }
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Writer flushing each write through to the client
type flushWriter struct {
	w gin.ResponseWriter
}

func (f flushWriter) Write(p []byte) (n int, err error) {
	n, err=f.w.Write(p)
	f.w.Flush()
	return n, err
}

// Handler decoding a job from the request body and running it, streaming the
// log to the client as plain text. The job is cancelled if the client goes away.
func postJob(base *ops.Context, factory func() ops.Operator) gin.HandlerFunc {
	return func(c *gin.Context) {
		op:=factory()
		if err:=c.ShouldBindJSON(op); err!=nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
			return
		}

		header := c.Writer.Header()
		header.Set("Content-Type", "text/plain")
		c.Writer.WriteHeader(http.StatusOK)

		logWriter:=logging.NewWriter(flushWriter{c.Writer})
		if err:=printArgs(logWriter, "Arguments:\n", "\n", op); err!=nil {
			fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
			return
		}

		jc:=*base
		jc.Log, jc.RestrictPaths=logWriter, true
		if err:=op.Run(c.Request.Context(), &jc); err!=nil {
			fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		}
	}
}
