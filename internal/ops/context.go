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


package ops

import (
	"fmt"
	"io"
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// An execution context for operators
type Context struct {
	Log           io.Writer
	MemoryMB      int    // memory.TotalMemory()/1024/1024
	ResampleMB    int    // MemoryMB*7/10, budget for private accumulation buffers
	MaxThreads    int    `json:"maxThreads"`
	CacheL2       int    // bytes, 0 if unknown
	RestrictPaths bool   // only allow relative file names inside the working directory tree
}

func NewContext(log io.Writer) *Context {
	memoryMB:=int(memory.TotalMemory()/1024/1024)
	l2:=cpuid.CPU.Cache.L2
	if l2<0 { l2=0 }
	return &Context{
		Log        : log,
		MemoryMB   : memoryMB,
		ResampleMB : memoryMB*7/10,
		MaxThreads : runtime.GOMAXPROCS(0),
		CacheL2    : l2,
	}
}

// Describes the machine the context runs on
func (c *Context) String() string {
	return fmt.Sprintf("%s, %d logical cores, %d threads, L2 %d KB, AVX2 %v, %d MB physical memory",
		cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, c.MaxThreads, c.CacheL2/1024, cpuid.CPU.AVX2(), c.MemoryMB)
}

const (
	minChunkRows=8
	maxChunkRows=512
	defaultL2   =256*1024
)

// Number of swath rows per work item so that the geolocation and channel samples
// of one work item fit into the L2 cache
func (c *Context) ChunkRows(cols, channels, bytesPerSample int) int {
	l2:=c.CacheL2
	if l2<=0 { l2=defaultL2 }
	bytesPerRow:=cols*(2*8+channels*bytesPerSample)
	if bytesPerRow<=0 { return maxChunkRows }
	rows:=l2/bytesPerRow
	if rows<minChunkRows { rows=minChunkRows }
	if rows>maxChunkRows { rows=maxChunkRows }
	return rows
}
