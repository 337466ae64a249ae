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


// Package metrics exports resampling counters to Prometheus
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ssec/polar2grid-sub004/internal/ewa"
)

var (
	swathPixels=promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "p2g_swath_pixels_total",
		Help: "Swath pixels seen by the resampler, by treatment.",
	}, []string{"result"})
	resampleDuration=promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "p2g_resample_seconds",
		Help:    "Duration of resampling jobs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	cellsValid=promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "p2g_grid_cells_valid_total",
		Help: "Non-fill output grid cells written, by channel.",
	}, []string{"channel"})
	httpDuration=promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_response_time_seconds",
		Help: "Duration of HTTP requests.",
	}, []string{"path"})
	httpRequests=promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Number of HTTP requests.",
	}, []string{"path"})
)

// Labels of p2g_swath_pixels_total
const (
	ResultUsed       = "used"
	ResultNoLocation = "no_location"
	ResultUnusable   = "unusable"
	ResultOffGrid    = "off_grid"
)

// Records the pixel counts of resampled swaths
func ObservePixels(s ewa.Stats) {
	swathPixels.WithLabelValues(ResultUsed      ).Add(float64(s.Used))
	swathPixels.WithLabelValues(ResultNoLocation).Add(float64(s.NoLocation))
	swathPixels.WithLabelValues(ResultUnusable  ).Add(float64(s.Unusable))
	swathPixels.WithLabelValues(ResultOffGrid   ).Add(float64(s.OffGrid))
}

// Records the duration of a resampling job started at the given time
func ObserveDuration(start time.Time) {
	resampleDuration.Observe(time.Since(start).Seconds())
}

// Records the valid cells written for a channel
func ObserveValid(channel string, valid int) {
	cellsValid.WithLabelValues(channel).Add(float64(valid))
}

// Gin middleware recording request durations and counts per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start:=time.Now()
		c.Next()
		path:=c.FullPath()
		if path=="" { path="unmatched" }
		httpDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(path).Inc()
	}
}
