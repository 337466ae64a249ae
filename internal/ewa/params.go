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


package ewa

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Smallest accepted weight sum when none is configured
const Epsilon=1e-8

// How finely footprint ellipses are derived
type Precision int

const (
	PerScan  Precision = iota // one ellipse per column of each scan
	PerPixel                  // one ellipse per swath pixel
)

var precisionNames=[]string{"scan", "pixel"}

func (p Precision) String() string {
	if p<0 || int(p)>=len(precisionNames) { return fmt.Sprintf("Precision(%d)", int(p)) }
	return precisionNames[p]
}

func (p Precision) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Precision) UnmarshalText(b []byte) error {
	s:=strings.ToLower(string(b))
	for i, n:=range precisionNames {
		if n==s { *p=Precision(i); return nil }
	}
	return errors.Errorf("unknown precision '%s'", s)
}

// Resampling parameters
type Params struct {
	WeightCount       int       `json:"weightCount"       yaml:"weight_count"`       // entries in the weight table
	WeightMin         float64   `json:"weightMin"         yaml:"weight_min"`         // weight at the cutoff distance
	WeightDistanceMax float64   `json:"weightDistanceMax" yaml:"weight_distance_max"` // cutoff distance, in swath pixel spacings
	WeightDeltaMax    float64   `json:"weightDeltaMax"    yaml:"weight_delta_max"`    // maximum spill in grid cells
	WeightSumMin      float64   `json:"weightSumMin"      yaml:"weight_sum_min"`      // minimum weight sum for a valid cell, <=0 means Epsilon
	MaximumWeightMode bool      `json:"maximumWeightMode" yaml:"maximum_weight_mode"`
	RowsPerScan       int       `json:"rowsPerScan"       yaml:"rows_per_scan"`       // 0=whole swath is one scan
	Precision         Precision `json:"precision"         yaml:"precision"`
}

func DefaultParams() Params {
	return Params{
		WeightCount:       10000,
		WeightMin:         0.01,
		WeightDistanceMax: 1.0,
		WeightDeltaMax:    10.0,
		WeightSumMin:      -1.0,
		MaximumWeightMode: false,
		RowsPerScan:       0,
		Precision:         PerScan,
	}
}

// Unmarshal with defaults for fields not given in the JSON
func (p *Params) UnmarshalJSON(data []byte) error {
	type defaults Params
	def:=defaults(DefaultParams())
	if err:=json.Unmarshal(data, &def); err!=nil { return err }
	*p=Params(def)
	return nil
}

func (p *Params) Validate() error {
	if p.WeightCount<2 {
		return errors.Errorf("weight count %d must be at least 2", p.WeightCount)
	}
	if !(p.WeightMin>0) || p.WeightMin>=1 {
		return errors.Errorf("minimum weight %g must be in (0,1)", p.WeightMin)
	}
	if !(p.WeightDistanceMax>0) || math.IsInf(p.WeightDistanceMax, 0) {
		return errors.Errorf("maximum weight distance %g must be positive", p.WeightDistanceMax)
	}
	if !(p.WeightDeltaMax>0) || math.IsInf(p.WeightDeltaMax, 0) {
		return errors.Errorf("maximum weight delta %g must be positive", p.WeightDeltaMax)
	}
	if p.RowsPerScan<0 {
		return errors.Errorf("rows per scan %d must not be negative", p.RowsPerScan)
	}
	if p.Precision!=PerScan && p.Precision!=PerPixel {
		return errors.Errorf("unknown precision %d", int(p.Precision))
	}
	return nil
}

// Effective minimum weight sum for a valid output cell
func (p *Params) SumMin() float64 {
	if p.WeightSumMin<=0 { return Epsilon }
	return p.WeightSumMin
}

// Squared cutoff distance
func (p *Params) QMax() float64 {
	return p.WeightDistanceMax*p.WeightDistanceMax
}
