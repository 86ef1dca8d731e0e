// Package verifier compares computed fields against a reference, slab by
// slab, skipping halo regions the computation is not responsible for.
package verifier

import (
	"fmt"
	"math"

	"github.com/notargets/StencilKernel/storage"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Halo is the number of points excluded at the low and high end of an axis
type Halo struct {
	Minus, Plus int
}

// Verifier checks fields for approximate equality
type Verifier struct {
	// Tolerance is the absolute or relative difference accepted, as in
	// mat.EqualApprox
	Tolerance float64
}

// Report summarizes a comparison
type Report struct {
	Compared int

	// Failed counts the (c, k) slabs outside the tolerance
	Failed int

	MaxError float64
	// L2 is the root of the summed squared errors
	L2       float64

	// WorstC and WorstK locate the slab holding MaxError
	WorstC, WorstK int
}

func (r Report) String() string {
	return fmt.Sprintf("compared=%d failed=%d max=%.3e l2=%.3e at c=%d k=%d",
		r.Compared, r.Failed, r.MaxError, r.L2, r.WorstC, r.WorstK)
}

// Verify compares the interior of actual against expected. halos[0] trims i,
// halos[1] trims j. The returned error reports the worst slab when any point
// differs by more than the tolerance.
func Verify[T storage.Scalar](v Verifier, expected, actual *storage.Field[T], halos [2]Halo) (Report, error) {
	var r Report
	ed, ad := expected.Meta.Dims, actual.Meta.Dims
	if ed != ad {
		return r, fmt.Errorf("dimension mismatch %v and %v", ed, ad)
	}
	ni, nc, nj, nk := ed[0], ed[1], ed[2], ed[3]
	i0, i1 := halos[0].Minus, ni-halos[0].Plus
	j0, j1 := halos[1].Minus, nj-halos[1].Plus
	if i0 < 0 || j0 < 0 || i0 >= i1 || j0 >= j1 {
		return r, fmt.Errorf("halos %v leave no interior in %dx%d", halos, ni, nj)
	}

	var sq float64
	diff := mat.NewDense(j1-j0, i1-i0, nil)
	for k := 0; k < nk; k++ {
		for c := 0; c < nc; c++ {
			e := expected.Slab(c, k).Slice(j0, j1, i0, i1)
			a := actual.Slab(c, k).Slice(j0, j1, i0, i1)
			r.Compared += (j1 - j0) * (i1 - i0)
			if !mat.EqualApprox(e, a, v.Tolerance) {
				r.Failed++
			}
			diff.Sub(e, a)
			raw := diff.RawMatrix().Data
			sq += floats.Dot(raw, raw)
			worst := math.Max(math.Abs(floats.Max(raw)), math.Abs(floats.Min(raw)))
			if worst > r.MaxError {
				r.MaxError = worst
				r.WorstC, r.WorstK = c, k
			}
		}
	}
	r.L2 = math.Sqrt(sq)
	if r.Failed > 0 {
		return r, fmt.Errorf("%s and %s differ: %v", expected.Name, actual.Name, r)
	}
	return r, nil
}
