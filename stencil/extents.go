package stencil

import (
	"github.com/notargets/StencilKernel/storage"
)

// ExtentOf returns the union of the extents every ESF accesses arg with
func ExtentOf[T storage.Scalar](esfs []*ESF[T], arg Arg) Extent {
	var ext Extent
	for _, esf := range esfs {
		if !HasParameter(esf, arg) {
			continue
		}
		n, _ := esf.Slot(arg)
		ext = ext.Union(esf.Accessors()[n].Extent)
	}
	return ext
}

// RequiredExtents returns, per ESF, how far beyond the interior it must
// compute so that later ESFs reading its outputs with a non-zero extent see
// computed values. The last ESF computes the interior only.
func RequiredExtents[T storage.Scalar](esfs []*ESF[T]) []Extent {
	out := make([]Extent, len(esfs))
	demanded := make(map[Arg]Extent)
	for n := len(esfs) - 1; n >= 0; n-- {
		esf := esfs[n]
		var req Extent
		for slot, a := range esf.Accessors() {
			if a.Intent == ReadWrite {
				req = req.Union(demanded[esf.args[slot]])
			}
		}
		out[n] = req
		for slot, a := range esf.Accessors() {
			if a.Intent == ReadOnly {
				arg := esf.args[slot]
				demanded[arg] = demanded[arg].Union(req.Add(a.Extent))
			}
		}
	}
	return out
}

// ArgsOf returns every placeholder used by the ESFs, in order of first use
func ArgsOf[T storage.Scalar](esfs []*ESF[T]) []Arg {
	var out []Arg
	seen := make(map[Arg]bool)
	for _, esf := range esfs {
		for _, a := range esf.Args() {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}
