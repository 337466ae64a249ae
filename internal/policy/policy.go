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


// Package policy selects resampling parameters per reader, sensor and product
// from a YAML rule file.
package policy

import (
	"bytes"
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"github.com/ssec/polar2grid-sub004/internal/ewa"
)

// Parameter overrides. Nil fields keep the value from less specific rules
type Overrides struct {
	WeightCount       *int           `yaml:"weight_count"`
	WeightMin         *float64       `yaml:"weight_min"`
	WeightDistanceMax *float64       `yaml:"weight_distance_max"`
	WeightDeltaMax    *float64       `yaml:"weight_delta_max"`
	WeightSumMin      *float64       `yaml:"weight_sum_min"`
	MaximumWeightMode *bool          `yaml:"maximum_weight_mode"`
	RowsPerScan       *int           `yaml:"rows_per_scan"`
	Precision         *ewa.Precision `yaml:"precision"`
	Fill              *float64       `yaml:"fill"`
}

// A rule applies when all its non-empty keys match. Keys are path.Match glob patterns
type Rule struct {
	Reader    string `yaml:"reader"`
	Sensor    string `yaml:"sensor"`
	Product   string `yaml:"product"`
	Overrides `yaml:",inline"`
}

// A set of rules on top of global defaults
type Policy struct {
	Defaults Overrides `yaml:"defaults"`
	Rules    []Rule    `yaml:"rules"`
}

// Result of a policy lookup
type Selection struct {
	Params ewa.Params
	Fill   *float64    // channel fill value override, nil if none configured
	Rules  []int       // indices of the applied rules, least specific first
}

// Loads a policy from a YAML file
func Load(fileName string) (*Policy, error) {
	f, err:=os.Open(fileName)
	if err!=nil { return nil, errors.Wrap(err, "opening policy") }
	defer f.Close()
	p, err:=Read(f)
	if err!=nil { return nil, errors.Wrapf(err, "reading policy %s", fileName) }
	return p, nil
}

// Reads a policy from YAML, rejecting unknown keys and malformed patterns
func Read(r io.Reader) (*Policy, error) {
	b, err:=io.ReadAll(r)
	if err!=nil { return nil, err }
	p:=&Policy{}
	if len(bytes.TrimSpace(b))==0 { return p, nil }
	dec:=yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err:=dec.Decode(p); err!=nil { return nil, err }
	for i, rule:=range p.Rules {
		for _, pattern:=range []string{rule.Reader, rule.Sensor, rule.Product} {
			if _, err:=path.Match(pattern, ""); err!=nil {
				return nil, errors.Wrapf(err, "rule %d: pattern '%s'", i, pattern)
			}
		}
	}
	if _, err:=p.Lookup("", "", ""); err!=nil {
		return nil, errors.Wrap(err, "defaults")
	}
	return p, nil
}

// Number of keys a rule constrains; more keys is more specific
func (r *Rule) specificity() int {
	n:=0
	for _, k:=range []string{r.Reader, r.Sensor, r.Product} {
		if k!="" && k!="*" { n++ }
	}
	return n
}

func (r *Rule) matches(reader, sensor, product string) bool {
	return match(r.Reader, reader) && match(r.Sensor, sensor) && match(r.Product, product)
}

func match(pattern, name string) bool {
	if pattern=="" { return true }
	ok, _:=path.Match(pattern, name)
	return ok
}

// Returns the parameters for the given keys: built-in defaults, then policy defaults,
// then all matching rules from least to most specific. Among equally specific rules
// the later one in the file wins.
func (p *Policy) Lookup(reader, sensor, product string) (*Selection, error) {
	s:=&Selection{Params:ewa.DefaultParams()}
	s.apply(&p.Defaults)
	for level:=0; level<=3; level++ {
		for i:=range p.Rules {
			r:=&p.Rules[i]
			if r.specificity()!=level || !r.matches(reader, sensor, product) { continue }
			s.apply(&r.Overrides)
			s.Rules=append(s.Rules, i)
		}
	}
	if err:=s.Params.Validate(); err!=nil {
		return nil, errors.Wrapf(err, "policy for %s/%s/%s", reader, sensor, product)
	}
	return s, nil
}

func (s *Selection) apply(o *Overrides) {
	q:=&s.Params
	if o.WeightCount      !=nil { q.WeightCount      =*o.WeightCount }
	if o.WeightMin        !=nil { q.WeightMin        =*o.WeightMin }
	if o.WeightDistanceMax!=nil { q.WeightDistanceMax=*o.WeightDistanceMax }
	if o.WeightDeltaMax   !=nil { q.WeightDeltaMax   =*o.WeightDeltaMax }
	if o.WeightSumMin     !=nil { q.WeightSumMin     =*o.WeightSumMin }
	if o.MaximumWeightMode!=nil { q.MaximumWeightMode=*o.MaximumWeightMode }
	if o.RowsPerScan      !=nil { q.RowsPerScan      =*o.RowsPerScan }
	if o.Precision        !=nil { q.Precision        =*o.Precision }
	if o.Fill             !=nil { f:=*o.Fill; s.Fill=&f }
}
