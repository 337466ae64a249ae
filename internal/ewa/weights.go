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
	"math"

	"github.com/pkg/errors"
)

// Precomputed gaussian falloff, indexed by the normalized quadratic form value q in [0,qmax).
// w(0)=1, w(qmax)=weightMin, and q>=qmax receives no weight. Immutable once built.
type WeightTable struct {
	weights []float64
	qmax    float64
	qfactor float64   // table entries per unit of q
	alpha   float64   // falloff exponent, w(q)=exp(-alpha*q)
}

// Builds a weight table with count entries from the given cutoff distance and weight at the cutoff
func NewWeightTable(count int, weightMin, distanceMax float64) (*WeightTable, error) {
	if count<2 { return nil, errors.Errorf("weight table needs at least 2 entries, got %d", count) }
	if !(weightMin>0) || weightMin>=1 { return nil, errors.Errorf("minimum weight %g must be in (0,1)", weightMin) }
	if !(distanceMax>0) { return nil, errors.Errorf("maximum distance %g must be positive", distanceMax) }

	qmax:=distanceMax*distanceMax
	t:=&WeightTable{
		weights: make([]float64, count),
		qmax:    qmax,
		qfactor: float64(count-1)/qmax,
		alpha:   -math.Log(weightMin)/qmax,
	}
	for i:=range t.weights {
		t.weights[i]=math.Exp(-t.alpha*float64(i)/t.qfactor)
	}
	return t, nil
}

// Builds the weight table for the given parameters
func NewWeightTableFromParams(p *Params) (*WeightTable, error) {
	return NewWeightTable(p.WeightCount, p.WeightMin, p.WeightDistanceMax)
}

// Returns the weight for quadratic form value q. Zero outside [0,qmax)
func (t *WeightTable) Weight(q float64) float64 {
	if !(q>=0) || q>=t.qmax { return 0 }
	return t.at(q)
}

// Lookup without range checks, for 0<=q<qmax
func (t *WeightTable) at(q float64) float64 {
	i:=int(q*t.qfactor)
	if i>=len(t.weights) { i=len(t.weights)-1 }
	return t.weights[i]
}

func (t *WeightTable) QMax() float64 { return t.qmax }

func (t *WeightTable) Alpha() float64 { return t.alpha }

func (t *WeightTable) Len() int { return len(t.weights) }
