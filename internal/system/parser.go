package system

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Parse reads a catalog from r. Each non-comment line is one directive:
//
//	system <name>
//	star <name> <mass_kg> <radius_m>
//	planet <name> <mass_kg> <semi_major_axis_m> [radius_m]
//
// star and planet lines apply to the most recent system. Malformed lines and
// systems that fail validation are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]System, error) {
	scanner := bufio.NewScanner(r)

	var (
		systems []System
		current *System
		lineNo  int
	)

	flush := func() {
		if current == nil {
			return
		}
		if err := current.Validate(); err != nil {
			logger.Warn("skipping invalid system", "name", current.Name, "error", err)
		} else {
			systems = append(systems, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "system":
			if len(fields) != 2 {
				logger.Warn("skipping malformed system line", "line", lineNo)
				continue
			}
			flush()
			current = &System{Name: fields[1]}

		case "star":
			if current == nil {
				logger.Warn("skipping star outside a system", "line", lineNo)
				continue
			}
			if len(fields) != 4 {
				logger.Warn("skipping malformed star line", "line", lineNo, "system", current.Name)
				continue
			}
			nums, err := parseFloats(fields[2:])
			if err != nil {
				logger.Warn("skipping star with invalid number", "line", lineNo, "system", current.Name, "error", err)
				continue
			}
			current.Star = NewStar(fields[1], nums[0], nums[1])

		case "planet":
			if current == nil {
				logger.Warn("skipping planet outside a system", "line", lineNo)
				continue
			}
			if len(fields) != 4 && len(fields) != 5 {
				logger.Warn("skipping malformed planet line", "line", lineNo, "system", current.Name)
				continue
			}
			nums, err := parseFloats(fields[2:])
			if err != nil {
				logger.Warn("skipping planet with invalid number", "line", lineNo, "system", current.Name, "error", err)
				continue
			}
			var radius float64
			if len(nums) == 3 {
				radius = nums[2]
			}
			current.Planets = append(current.Planets, NewPlanet(fields[1], nums[0], nums[1], radius))

		default:
			logger.Warn("skipping unknown directive", "line", lineNo, "directive", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	flush()

	return systems, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}
