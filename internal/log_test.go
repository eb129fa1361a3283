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

package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestLogTee(t *testing.T) {
	var console bytes.Buffer
	logConsole = &console
	defer func() { logConsole = os.Stdout }()

	LogPrintf("%d: before file\n", 1)
	fileName := filepath.Join(t.TempDir(), "test.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatalf("err=%v; want nil", err)
	}
	LogPrint("a", "b\n")
	LogPrintln("c")
	fmt.Fprintf(LogWriter(), "%s\n", "d")
	LogSync()

	data, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatalf("err=%v; want nil", err)
	}
	if got, want := string(data), "ab\nc\nd\n"; got != want {
		t.Errorf("file=%q; want %q", got, want)
	}
	if got, want := console.String(), "1: before file\nab\nc\nd\n"; got != want {
		t.Errorf("console=%q; want %q", got, want)
	}

	logMutex.Lock()
	err = closeLogFile()
	logMutex.Unlock()
	if err != nil {
		t.Errorf("close err=%v; want nil", err)
	}
	LogSync() // no file, no-op
}
