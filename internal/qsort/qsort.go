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


package qsort

type Number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~int | ~float32 | ~float64
}

// Sort an array in ascending order.
// Array must not contain IEEE NaN
func QSort[T Number](a []T) {
	if len(a)>1 {
		index:=QPartition(a)
		QSort(a[:index+1])
		QSort(a[index+1:])
	}
}

// Partitions an array with the middle pivot element, and returns the pivot index.
// Values less than the pivot are moved left of the pivot, those greater are moved right.
// Array must not contain IEEE NaN
func QPartition[T Number](a []T) int {
	left, right:=0, len(a)-1
	mid  :=(left+right)>>1
	pivot:=a[mid]
	l:=left -1
	r:=right+1
	for {
		for {
			l++
			if a[l]>=pivot { break }
		}
		for {
			r--
			if a[r]<=pivot { break }
		}
		if l>=r { return r }
		a[l], a[r]=a[r], a[l]
	}
}

// Select median of an array, averaging the two middle elements for even lengths.
// Partially reorders the array. Array must not be empty or contain IEEE NaN
func QSelectMedian[T Number](a []T) float64 {
	n:=len(a)
	upper:=QSelect(a, (n>>1)+1)
	if n&1!=0 { return float64(upper) }
	lower:=QSelect(a[:n>>1], n>>1) // partition leaves the lower half left of the upper middle
	return 0.5*(float64(lower)+float64(upper))
}

// Select kth lowest element from an array, k counting from 1. Partially reorders the array.
// Array must not contain IEEE NaN
func QSelect[T Number](a []T, k int) T {
	left, right:=0, len(a)-1
	for left<right {
		// partition
		mid:=(left+right)>>1
		pivot:=a[mid]
		l, r:=left-1, right+1
		for {
			for {
				l++
				if a[l]>=pivot { break }
			}
			for {
				r--
				if a[r]<=pivot { break }
			}
			if l>=r { break } // index in r
			a[l], a[r]=a[r], a[l]
		}
		index:=r

		offset:=index-left+1
		if k<=offset {
			right=index
		} else {
			left=index+1
			k=k-offset
		}
	}
	return a[left]
}
