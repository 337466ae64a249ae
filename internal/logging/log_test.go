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


package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTeeToFile(t *testing.T) {
	var out bytes.Buffer
	w:=NewWriter(&out)
	w.Printf("before %d\n", 1)
	fileName:=filepath.Join(t.TempDir(), "run.log")
	if err:=w.AlsoToFile(fileName); err!=nil { t.Fatalf("AlsoToFile: %v", err) }
	w.Printf("after %d\n", 2)
	if err:=w.Close(); err!=nil { t.Fatalf("Close: %v", err) }

	if got:=out.String(); got!="before 1\nafter 2\n" {
		t.Errorf("stdout=%q; want both lines", got)
	}
	b, err:=os.ReadFile(fileName)
	if err!=nil { t.Fatalf("ReadFile: %v", err) }
	if string(b)!="after 2\n" { t.Errorf("file=%q; want %q", string(b), "after 2\n") }
}

func TestMemString(t *testing.T) {
	if s:=MemString(); !strings.HasPrefix(s, "Alloc: ") { t.Errorf("MemString()=%q", s) }
}
