// Package textscan pulls best-effort signals out of unstructured build tool
// output. Nothing here is authoritative: a missing marker means "could not
// confirm", never "failed".
package textscan

import (
	"bufio"
	"strings"
)

// Markers are the literal strings looked for in PlatformIO output.
type Markers struct {
	Success     string // printed by `pio run` on a clean build
	RAM         string
	Flash       string
	FeatureFlag string // a -D define expected on the verbose compiler command line
}

// DefaultMarkers matches PlatformIO's summary lines and the v3 firmware define.
var DefaultMarkers = Markers{
	Success:     "SUCCESS",
	RAM:         "RAM:",
	Flash:       "Flash:",
	FeatureFlag: "JUMPING_ROCKET_V3=1",
}

// Contains reports whether marker occurs anywhere in text. An empty marker
// never matches.
func Contains(text, marker string) bool {
	return marker != "" && strings.Contains(text, marker)
}

// LinesContaining returns every line of text that contains at least one of
// the markers, trimmed, in output order.
func LinesContaining(text string, markers ...string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for _, m := range markers {
			if Contains(line, m) {
				lines = append(lines, strings.TrimSpace(line))
				break
			}
		}
	}
	return lines
}

// Memory extracts the RAM and Flash usage lines. ok is false unless both
// markers are present in text.
func Memory(text string, m Markers) (lines []string, ok bool) {
	if !Contains(text, m.RAM) || !Contains(text, m.Flash) {
		return nil, false
	}
	return LinesContaining(text, m.RAM, m.Flash), true
}
