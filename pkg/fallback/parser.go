package fallback

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/luminix/luminix/pkg/generations"
)

// generationLine matches the fixed-width listing format:
//
//	 123   2025-11-02 10:15:03   (current)
var generationLine = regexp.MustCompile(`^\s*(\d+)\s+(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\s*(\(current\))?\s*$`)

const generationTimeLayout = "2006-01-02 15:04:05"

// parseGenerationLine maps one listing line onto a Generation. Each field
// is converted explicitly; a line that does not match the format returns
// ok=false so callers can skip noise without guessing.
func parseGenerationLine(line string) (generations.Generation, bool, error) {
	m := generationLine.FindStringSubmatch(line)
	if m == nil {
		return generations.Generation{}, false, nil
	}

	id, err := strconv.Atoi(m[1])
	if err != nil {
		return generations.Generation{}, false, fmt.Errorf("failed to parse generation number %q: %w", m[1], err)
	}
	ts, err := time.ParseInLocation(generationTimeLayout, m[2], time.Local)
	if err != nil {
		return generations.Generation{}, false, fmt.Errorf("failed to parse generation timestamp %q: %w", m[2], err)
	}

	return generations.Generation{
		ID:        id,
		Timestamp: ts,
		Current:   m[3] != "",
	}, true, nil
}

// parseGenerationList parses the full listing output. Unrecognized lines
// are ignored; a recognized line that fails conversion is an error.
func parseGenerationList(output string) ([]generations.Generation, error) {
	var gens []generations.Generation
	for _, line := range strings.Split(output, "\n") {
		gen, ok, err := parseGenerationLine(line)
		if err != nil {
			return nil, err
		}
		if ok {
			gens = append(gens, gen)
		}
	}
	if len(gens) == 0 {
		return nil, fmt.Errorf("no generations found in listing output")
	}
	return gens, nil
}
