package system

import (
	"fmt"
	"sort"
)

// Solar system constants in SI units.
func Sun() Star { return NewStar("sun", 1.9885e30, 6.957e8) }

func Earth() Planet   { return NewPlanet("earth", 5.97237e24, 149.598e9, 6.3781e6) }
func Mercury() Planet { return NewPlanet("mercury", 3.3e23, 57.9e9, 0) }
func Venus() Planet   { return NewPlanet("venus", 4.87e24, 108.2e9, 0) }
func Mars() Planet    { return NewPlanet("mars", 6.42e23, 227.9e9, 0) }
func Jupiter() Planet { return NewPlanet("jupiter", 1.89e27, 740.52e9, 0) }
func Saturn() Planet  { return NewPlanet("saturn", 1.9e27, 1427e9, 0) }
func Uranus() Planet  { return NewPlanet("uranus", 8.68e25, 2871e9, 0) }
func Neptune() Planet { return NewPlanet("neptune", 1.29e22, 5913e9, 0) }

var presets = map[string]func() System{
	"jupiter": func() System {
		return System{Name: "jupiter", Star: Sun(), Planets: []Planet{Earth(), Jupiter()}}
	},
	"solar": func() System {
		return System{Name: "solar", Star: Sun(), Planets: []Planet{
			Earth(), Mercury(), Venus(), Mars(), Jupiter(), Saturn(), Neptune(),
		}}
	},
}

// Preset returns a fresh copy of a built-in system.
func Preset(name string) (System, error) {
	fn, ok := presets[name]
	if !ok {
		return System{}, fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
	return fn(), nil
}

// Presets returns every built-in system, sorted by name.
func Presets() []System {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]System, 0, len(names))
	for _, name := range names {
		out = append(out, presets[name]())
	}
	return out
}
