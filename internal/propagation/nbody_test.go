package propagation

import (
	"math"
	"testing"

	"github.com/tchin/transit-timing-variation/internal/geometry"
)

// Sun and Earth constants in SI units.
const (
	sunMass   = 1.9885e30
	earthMass = 5.97237e24
	earthA    = 149.598e9
)

func sunEarth(t *testing.T) *NBody {
	t.Helper()
	sim, err := NewNBody(Config{Units: SI, Timestep: 100})
	if err != nil {
		t.Fatalf("NewNBody failed: %v", err)
	}
	if err := sim.AddBody(Body{Mass: sunMass}); err != nil {
		t.Fatalf("AddBody(sun) failed: %v", err)
	}
	if err := sim.AddBody(Body{Mass: earthMass, SemiMajorAxis: earthA}); err != nil {
		t.Fatalf("AddBody(earth) failed: %v", err)
	}
	sim.Recenter()
	return sim
}

// TestTwoBodyPeriod verifies that a planet placed by semi-major axis returns to its
// starting point after one Kepler period.
func TestTwoBodyPeriod(t *testing.T) {
	sim := sunEarth(t)
	period := KeplerPeriod(SI, sunMass+earthMass, earthA)

	// One sidereal year, roughly 365.25 days.
	if days := period / 86400; math.Abs(days-365.25) > 0.5 {
		t.Fatalf("Kepler period = %.3f days, want ~365.25", days)
	}

	if err := sim.AdvanceTo(period); err != nil {
		t.Fatalf("AdvanceTo failed: %v", err)
	}
	pos := sim.Positions()
	rel := pos[1].Sub(pos[0])

	if d := rel.Sub(geometry.Vec3{X: earthA}).Norm(); d > 1e-5*earthA {
		t.Errorf("after one period planet is %.0f m from start (rel = %+v)", d, rel)
	}
}

// TestEnergyConservation verifies the leapfrog scheme keeps energy drift small.
func TestEnergyConservation(t *testing.T) {
	sim := sunEarth(t)
	e0 := sim.Energy()

	if err := sim.AdvanceTo(90 * 86400); err != nil {
		t.Fatalf("AdvanceTo failed: %v", err)
	}
	e1 := sim.Energy()

	if drift := math.Abs((e1 - e0) / e0); drift > 1e-7 {
		t.Errorf("relative energy drift = %g, want < 1e-7", drift)
	}
}

// TestAdvanceLandsExactly verifies the final partial step lands on the target time.
func TestAdvanceLandsExactly(t *testing.T) {
	sim := sunEarth(t)

	for _, target := range []float64{1234.5, 3600, 3599.25, 0.5, 7200} {
		if err := sim.AdvanceTo(target); err != nil {
			t.Fatalf("AdvanceTo(%g) failed: %v", target, err)
		}
		if sim.Time() != target {
			t.Errorf("Time() = %v, want %v", sim.Time(), target)
		}
	}
}

// TestBackwardRepositioning verifies integrating backward retraces the forward path.
func TestBackwardRepositioning(t *testing.T) {
	sim := sunEarth(t)
	start := sim.Positions()

	if err := sim.AdvanceTo(5000); err != nil {
		t.Fatalf("AdvanceTo(5000) failed: %v", err)
	}
	if err := sim.AdvanceTo(0); err != nil {
		t.Fatalf("AdvanceTo(0) failed: %v", err)
	}

	end := sim.Positions()
	for i := range start {
		if d := end[i].Sub(start[i]).Norm(); d > 1.0 {
			t.Errorf("body %d moved %.3f m after forward/backward round trip", i, d)
		}
	}
}

// TestRecenter verifies the centre of mass and total momentum are zero after Recenter.
func TestRecenter(t *testing.T) {
	sim := sunEarth(t)

	var mx, px float64
	var py float64
	for i, p := range sim.Positions() {
		m := sim.bodies[i].mass
		mx += m * p.X
		v := sim.Velocities()[i]
		px += m * v.X
		py += m * v.Y
	}

	if math.Abs(mx)/(sunMass*earthA) > 1e-12 {
		t.Errorf("centre of mass offset = %g", mx/(sunMass+earthMass))
	}
	if math.Abs(px)+math.Abs(py) > 1e-6*earthMass*30000 {
		t.Errorf("total momentum = (%g, %g), want ~0", px, py)
	}
}

func TestNBodyConfigErrors(t *testing.T) {
	if _, err := NewNBody(Config{Timestep: -1}); err == nil {
		t.Error("expected error for negative timestep")
	}

	sim, err := NewNBody(Config{})
	if err != nil {
		t.Fatalf("NewNBody failed: %v", err)
	}
	if err := sim.AddBody(Body{Mass: sunMass, SemiMajorAxis: earthA}); err == nil {
		t.Error("expected error placing the first body by semi-major axis")
	}
	if err := sim.AddBody(Body{Mass: -1}); err == nil {
		t.Error("expected error for negative mass")
	}
	if err := sim.AdvanceTo(math.NaN()); err == nil {
		t.Error("expected error for NaN target time")
	}
}

func TestCircularPositions(t *testing.T) {
	c := NewCircular(CircularOrbit{Radius: 10, Period: 100})

	pos := c.Positions()
	if len(pos) != 2 {
		t.Fatalf("got %d positions, want 2", len(pos))
	}
	if math.Abs(pos[1].X-10) > 1e-12 || math.Abs(pos[1].Y) > 1e-12 {
		t.Errorf("t=0 position = %+v, want (10, 0, 0)", pos[1])
	}

	c.AdvanceTo(25)
	pos = c.Positions()
	if math.Abs(pos[1].X) > 1e-9 || math.Abs(pos[1].Y-10) > 1e-9 {
		t.Errorf("quarter-period position = %+v, want (0, 10, 0)", pos[1])
	}

	// Backward queries are allowed.
	c.AdvanceTo(0)
	if c.Time() != 0 {
		t.Errorf("Time() = %v, want 0", c.Time())
	}
}

func BenchmarkAdvanceSolarSystemDay(b *testing.B) {
	planets := []Body{
		{Mass: earthMass, SemiMajorAxis: earthA},
		{Mass: 3.3e23, SemiMajorAxis: 57.9e9},
		{Mass: 4.87e24, SemiMajorAxis: 108.2e9},
		{Mass: 6.42e23, SemiMajorAxis: 227.9e9},
		{Mass: 1.89e27, SemiMajorAxis: 740.52e9},
		{Mass: 1.9e27, SemiMajorAxis: 1427e9},
		{Mass: 1.29e22, SemiMajorAxis: 5913e9},
	}

	for i := 0; i < b.N; i++ {
		sim, _ := NewNBody(Config{Units: SI, Timestep: 100})
		sim.AddBody(Body{Mass: sunMass})
		for _, p := range planets {
			sim.AddBody(p)
		}
		sim.Recenter()
		if err := sim.AdvanceTo(86400); err != nil {
			b.Fatal(err)
		}
	}
}
