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


package pool

import (
	"sync"
)

// Pool of constant sized arrays of given type, to reduce memory allocation overhead
type Sized[T any] struct {
	sync.RWMutex
	m map[int]*sync.Pool
}

func New[T any]() *Sized[T] {
	return &Sized[T]{m: make(map[int]*sync.Pool)}
}

// Returns a zeroed array of the given size, from the pool if available
func (p *Sized[T]) Get(size int) []T {
	p.RLock()
	sp:=p.m[size]
	p.RUnlock()
	if sp==nil { return make([]T, size) }
	if v:=sp.Get(); v!=nil {
		s:=*(v.(*[]T))
		var zero T
		for i:=range s { s[i]=zero }
		return s
	}
	return make([]T, size)
}

// Returns an array to the pool for reuse
func (p *Sized[T]) Put(s []T) {
	size:=len(s)
	p.RLock()
	sp:=p.m[size]
	p.RUnlock()
	if sp==nil {
		p.Lock()
		if sp=p.m[size]; sp==nil {
			sp=&sync.Pool{}
			p.m[size]=sp
		}
		p.Unlock()
	}
	sp.Put(&s)
}

// Drops all pooled arrays
func (p *Sized[T]) Clear() {
	p.Lock()
	p.m=make(map[int]*sync.Pool)
	p.Unlock()
}
