package clockskew

import (
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
)

// ProbeFunc reads a scalar clock offset in microseconds from an external
// time-sync daemon, per spec §6's read_clock_offset() abstraction. It
// returns ok=false when no offset is currently available.
type ProbeFunc func() (offsetMicros float64, ok bool)

// chronySourceLine matches a chronyc "sources" line carrying the current
// best source's offset: an optionally signed number with a us, ms or s unit.
var chronySourceLine = regexp.MustCompile(`^\^\*.*?([+-]?[0-9]+(?:\.[0-9]+)?)(us|ms|s)\s*$`)

// ntpqOffsetLine matches an ntpq -np line's 9th whitespace-separated field,
// the offset in milliseconds, on the line marked as the selected peer ("*").
var ntpqOffsetLine = regexp.MustCompile(`^\*\S+(?:\s+\S+){7}\s+([+-]?[0-9]+(?:\.[0-9]+)?)\s+\S+\s*$`)

// DefaultProbe shells out to ntpq on Windows, chronyc elsewhere, mirroring
// the original implementation's platform split. Both are external,
// best-effort time-sync daemons; a probe failure simply means no offset is
// currently available (spec §4.8: "the engine is unaffected").
func DefaultProbe() ProbeFunc {
	if runtime.GOOS == "windows" {
		return ntpqProbe
	}
	return chronyProbe
}

func chronyProbe() (float64, bool) {
	out, err := exec.Command("chronyc", "sources").Output()
	if err != nil {
		return 0, false
	}
	for _, line := range splitLines(out) {
		m := chronySourceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch m[2] {
		case "us":
			return val, true
		case "ms":
			return val * 1000, true
		case "s":
			return val * 1_000_000, true
		}
	}
	return 0, false
}

func ntpqProbe() (float64, bool) {
	out, err := exec.Command("ntpq", "-np").Output()
	if err != nil {
		return 0, false
	}
	for _, line := range splitLines(out) {
		m := ntpqOffsetLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return val * 1000, true // ntpq reports ms, convert to µs
	}
	return 0, false
}

func splitLines(b []byte) []string {
	var lines []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, string(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, string(b[start:]))
	}
	return lines
}
