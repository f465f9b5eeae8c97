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

// Package fplog centralizes the handful of logging helpers used across the
// core, so every package logs through the standard library's log.Logger
// instead of reaching for fmt.Println directly.
package fplog

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// LogPrintf logs a formatted message.
func LogPrintf(format string, args ...interface{}) {
	std.Printf(format, args...)
}

// LogPrintln logs a message followed by a newline.
func LogPrintln(args ...interface{}) {
	std.Println(args...)
}

// LogFatal logs a message and terminates the process.
func LogFatal(args ...interface{}) {
	std.Fatal(args...)
}

// LogFatalf logs a formatted message and terminates the process.
func LogFatalf(format string, args ...interface{}) {
	std.Fatalf(format, args...)
}
