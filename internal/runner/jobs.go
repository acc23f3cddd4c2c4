package runner

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/output"
	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/storage"
)

// BodyParameters yields a material parameter set for the body jobs.
type BodyParameters struct {
	JobName string
	Body    *settings.Settings[settings.BodyID]
}

func NewBodyParameters(name string, body *settings.Settings[settings.BodyID]) *BodyParameters {
	if body == nil {
		body = settings.NewBody()
	}
	return &BodyParameters{JobName: name, Body: body}
}

func (b *BodyParameters) Name() string     { return b.JobName }
func (b *BodyParameters) Slots() []Slot    { return nil }
func (b *BodyParameters) OutputType() Type { return TypeMaterial }

func (b *BodyParameters) Evaluate(*Inputs, *settings.Settings[settings.RunID], *Callbacks) (any, error) {
	return b.Body, nil
}

// MonolithicBody builds a single spherical body: positions on the selected
// packing, masses from the material density, velocities from the bulk
// velocity plus the spin around the center.
type MonolithicBody struct {
	JobName string
}

func NewMonolithicBody(name string) *MonolithicBody {
	return &MonolithicBody{JobName: name}
}

func (b *MonolithicBody) Name() string { return b.JobName }

func (b *MonolithicBody) Slots() []Slot {
	return []Slot{{Name: "material", Type: TypeMaterial}}
}

func (b *MonolithicBody) OutputType() Type { return TypeParticles }

func (b *MonolithicBody) Evaluate(in *Inputs, global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	body, err := in.Material("material")
	if err != nil {
		return nil, err
	}
	n, err := settings.Get[int](body, settings.BodyParticleCount)
	if err != nil {
		return nil, err
	}
	radius := settings.MustGet[float64](body, settings.BodyBodyRadius)
	if n <= 0 || radius <= 0 {
		return nil, fmt.Errorf("%w: body needs a positive particle count and radius", ErrSetup)
	}
	dist, err := settings.GetEnum[settings.Distribution](body, settings.BodyInitialDistribution)
	if err != nil {
		return nil, err
	}
	center := settings.MustGet[geometry.Vec](body, settings.BodyBodyCenter)
	bulk := settings.MustGet[geometry.Vec](body, settings.BodyBodyVelocity)
	spin := settings.MustGet[geometry.Vec](body, settings.BodyBodySpin)
	rho := settings.MustGet[float64](body, settings.BodyDensity)

	var pos []geometry.Vec
	switch dist {
	case settings.DistributionHexagonal:
		pos = hexagonalSphere(center, radius, n)
	case settings.DistributionCubic:
		pos = cubicSphere(center, radius, n)
	case settings.DistributionRandom:
		pos = randomSphere(center, radius, n)
	default:
		return nil, fmt.Errorf("%w: unknown distribution %d", ErrSetup, int(dist))
	}
	if len(pos) == 0 {
		return nil, fmt.Errorf("%w: packing produced no particles", ErrSetup)
	}

	volume := 4.0 / 3.0 * math.Pi * radius * radius * radius
	mass := rho * volume / float64(len(pos))
	h := 1.2 * math.Cbrt(volume/float64(len(pos)))

	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second, pos)
	v, err := st.Vectors(quantity.Position, quantity.Dt)
	if err != nil {
		return nil, err
	}
	for i := range v {
		v[i] = bulk.Add(geometry.Cross(spin, pos[i].Sub(center)))
	}
	masses := make([]float64, len(pos))
	hs := make([]float64, len(pos))
	for i := range masses {
		masses[i] = mass
		hs[i] = h
	}
	st.InsertScalar(quantity.Mass, quantity.Zero, masses)
	st.InsertScalar(quantity.SmoothingLength, quantity.First, hs)
	if err := st.AddPartition(storage.NewMaterial(body), len(pos)); err != nil {
		return nil, err
	}
	return st, nil
}

// hexagonalSphere fills a sphere with a hexagonal close packing whose
// spacing targets the requested particle count. The count is approximate;
// the mass per particle is derived from the actual count afterwards.
func hexagonalSphere(center geometry.Vec, radius float64, n int) []geometry.Vec {
	volume := 4.0 / 3.0 * math.Pi * radius * radius * radius
	a := math.Cbrt(math.Sqrt2 * volume / float64(n))
	dy := a * math.Sqrt(3) / 2
	dz := a * math.Sqrt(6) / 3
	var out []geometry.Vec
	kz := int(radius/dz) + 1
	ky := int(radius/dy) + 1
	kx := int(radius/a) + 2
	for k := -kz; k <= kz; k++ {
		for j := -ky; j <= ky; j++ {
			for i := -kx; i <= kx; i++ {
				p := geometry.V(
					a*(float64(i)+0.5*parity(j+k)),
					dy*(float64(j)+parity(k)/3),
					dz*float64(k))
				if p.Len() <= radius {
					out = append(out, center.Add(p))
				}
			}
		}
	}
	return out
}

func parity(i int) float64 {
	if i%2 != 0 {
		return 1
	}
	return 0
}

func cubicSphere(center geometry.Vec, radius float64, n int) []geometry.Vec {
	volume := 4.0 / 3.0 * math.Pi * radius * radius * radius
	a := math.Cbrt(volume / float64(n))
	var out []geometry.Vec
	k := int(radius/a) + 1
	for x := -k; x <= k; x++ {
		for y := -k; y <= k; y++ {
			for z := -k; z <= k; z++ {
				p := geometry.V(float64(x), float64(y), float64(z)).Scale(a)
				if p.Len() <= radius {
					out = append(out, center.Add(p))
				}
			}
		}
	}
	return out
}

// randomSphere draws exactly n uniform positions by rejection sampling.
// The seed is fixed so that identical settings reproduce the same body.
func randomSphere(center geometry.Vec, radius float64, n int) []geometry.Vec {
	rng := rand.New(rand.NewSource(1337))
	out := make([]geometry.Vec, 0, n)
	for len(out) < n {
		p := geometry.V(
			2*rng.Float64()-1,
			2*rng.Float64()-1,
			2*rng.Float64()-1).Scale(radius)
		if p.Len() <= radius {
			out = append(out, center.Add(p))
		}
	}
	return out
}

// LoadFile reads a saved state file, yielding its particles and recording
// the header fields a resumed phase needs.
type LoadFile struct {
	JobName string
	Path    paths.Path

	Info output.ResumeInfo
}

func NewLoadFile(name string, p paths.Path) *LoadFile {
	return &LoadFile{JobName: name, Path: p}
}

func (l *LoadFile) Name() string     { return l.JobName }
func (l *LoadFile) Slots() []Slot    { return nil }
func (l *LoadFile) OutputType() Type { return TypeParticles }

func (l *LoadFile) Evaluate(*Inputs, *settings.Settings[settings.RunID], *Callbacks) (any, error) {
	info, err := output.ReadResumeInfo(l.Path)
	if err != nil {
		return nil, err
	}
	l.Info = info
	st, _, err := output.LoadState(l.Path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// SaveFile writes the incoming particles to a state file and passes them
// through unchanged, so it can sit between two phases.
type SaveFile struct {
	JobName string
	Path    paths.Path
	Time    float64
}

func NewSaveFile(name string, p paths.Path) *SaveFile {
	return &SaveFile{JobName: name, Path: p}
}

func (s *SaveFile) Name() string { return s.JobName }

func (s *SaveFile) Slots() []Slot {
	return []Slot{{Name: "particles", Type: TypeParticles}}
}

func (s *SaveFile) OutputType() Type { return TypeParticles }

func (s *SaveFile) Evaluate(in *Inputs, global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	st, err := in.Particles("particles")
	if err != nil {
		return nil, err
	}
	name := ""
	if global != nil {
		name, _ = settings.Get[string](global, settings.RunName)
	}
	w := &output.StateWriter{
		Mask:    output.NewMask(s.Path.ParentPath(), s.Path.FileName().Native(), 0),
		RunName: name,
		Run:     global,
	}
	if _, err := w.Write(st, nil, s.Time); err != nil {
		return nil, err
	}
	return st, nil
}
