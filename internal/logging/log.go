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
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
)

// Log writer. Writes to a primary writer, usually stdout, and optionally to a file.
// Does not add prefixes, or force newlines. Safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	out       io.Writer
	logFile   *bufio.Writer
	logFileOS *os.File
}

// Creates a log writer onto the given primary output
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Enables logging to file in addition to the primary output. Replaces any earlier file
func (w *Writer) AlsoToFile(fileName string) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err=w.closeFile(); err!=nil { return err }
	w.logFileOS, err=os.OpenFile(fileName, os.O_CREATE | os.O_TRUNC | os.O_WRONLY, 0666)
	if err!=nil { return err }
	w.logFile=bufio.NewWriter(w.logFileOS)
	return nil
}

func (w *Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err=w.out.Write(p)
	if err!=nil || w.logFile==nil { return n, err }
	return w.logFile.Write(p)
}

func (w *Writer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}

// Prints the message, flushes and closes the log file, and exits with status 1
func (w *Writer) Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
	w.Close()
	os.Exit(1)
}

// Flushes the log file to disk
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logFile==nil { return nil }
	if err:=w.logFile.Flush(); err!=nil { return err }
	return w.logFileOS.Sync()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeFile()
}

func (w *Writer) closeFile() error {
	if w.logFile==nil { return nil }
	err:=w.logFile.Flush()
	if cerr:=w.logFileOS.Close(); err==nil { err=cerr }
	w.logFile, w.logFileOS=nil, nil
	return err
}

// Returns a one-line summary of Go heap usage
func MemString() string {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return fmt.Sprintf("Alloc: %d MB Sys: %d MB NumGC: %d", ms.Alloc>>20, ms.Sys>>20, ms.NumGC)
}
