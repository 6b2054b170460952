// Package ltdmrg computes finite temperature averages of electronic
// structure properties from the low lying spectrum of a molecular
// Hamiltonian.
//
// A Calc is built from an FCIDUMP integral file, optionally reorders
// the orbitals into a symmetry blocked order, solves for eigenstates
// in a grid of particle number and irrep sectors, and averages
// energies and density matrices over the thermal ensemble at inverse
// temperature beta.
package ltdmrg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jlatone/ltdmrg/ensemble"
	"github.com/jlatone/ltdmrg/fci"
	"github.com/jlatone/ltdmrg/fcidump"
	"github.com/jlatone/ltdmrg/mat"
	"github.com/jlatone/ltdmrg/pointgroup"
)

// Solver computes eigenstates of the Hamiltonian restricted to the
// requested sectors, and density matrices of the states it found.
// State indices passed to the density matrix methods refer to the
// slice returned by the most recent Solve.
type Solver interface {
	Solve(ctx context.Context, targets []ensemble.Target, nroots int, mu float64) ([]ensemble.State, error)
	// OnePDM returns the spin orbital one particle density matrix,
	// shape (2*norb, 2*norb).
	OnePDM(ctx context.Context, i int) (*mat.Dense, error)
	// TwoPDM returns the spin orbital two particle density matrix,
	// shape (2*norb, 2*norb, 2*norb, 2*norb).
	TwoPDM(ctx context.Context, i int) (*mat.Dense, error)
	// OneNPC returns the spin orbital particle number correlation
	// matrix, shape (2*norb, 2*norb).
	OneNPC(ctx context.Context, i int) (*mat.Dense, error)
}

// Options configures a Calc.
type Options struct {
	nroots      int
	spinAdapted bool
	reorder     bool
}

// NewOptions returns the default options.
func NewOptions() Options {
	return Options{nroots: 10, reorder: true}
}

// NRoots sets the maximum number of eigenstates kept per run.
func (o Options) NRoots(n int) Options {
	o.nroots = n
	return o
}

// SpinAdapted selects the spin adapted representation, where each
// reported state stands for a full spin multiplet.
func (o Options) SpinAdapted(b bool) Options {
	o.spinAdapted = b
	return o
}

// Reorder controls whether orbitals are permuted into symmetry
// blocked order before solving.
func (o Options) Reorder(b bool) Options {
	o.reorder = b
	return o
}

// Calc holds an initialized Hamiltonian and the sector targets to
// solve for.
type Calc struct {
	dump    *fcidump.FCIDUMP
	group   pointgroup.Group
	opt     Options
	orbSym  []pointgroup.Irrep
	ridx    []int
	targets []ensemble.Target
	solver  Solver
}

// FromFCIDUMP reads an FCIDUMP file and initializes a calculation.
func FromFCIDUMP(group, path string, options ...Options) (*Calc, error) {
	dump, err := fcidump.Read(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	c, err := newCalc(group, dump, options...)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return c, nil
}

// FromIntegrals initializes a calculation from integrals already in
// memory. If saveFCIDUMP is not empty, the integrals are written
// there in the original orbital order before any reordering.
func FromIntegrals(group string, dump *fcidump.FCIDUMP, saveFCIDUMP string, options ...Options) (*Calc, error) {
	if saveFCIDUMP != "" {
		if err := dump.Write(saveFCIDUMP); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	c, err := newCalc(group, dump, options...)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return c, nil
}

func newCalc(group string, dump *fcidump.FCIDUMP, options ...Options) (*Calc, error) {
	opt := NewOptions()
	if len(options) == 1 {
		opt = options[0]
	}
	g, err := pointgroup.Parse(group)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	c := &Calc{dump: dump, group: g, opt: opt}
	c.ridx = make([]int, dump.NOrb)
	for i := range c.ridx {
		c.ridx[i] = i
	}
	if opt.reorder {
		perm := g.OptimalOrder(dump.OrbSym)
		dump.Reorder(perm)
		c.ridx = pointgroup.Inverse(perm)
	}
	c.orbSym = g.XORAll(dump.OrbSym)

	c.targets = []ensemble.Target{{
		NElec: dump.NElec,
		TwoSz: dump.TwoS,
		Irrep: g.XOR(dump.ISym),
	}}
	c.solver = fci.New(dump, g)
	return c, nil
}

// Dump returns the integral set, in the solver's orbital order.
func (c *Calc) Dump() *fcidump.FCIDUMP { return c.dump }

// Targets returns the sector targets of the next Run.
func (c *Calc) Targets() []ensemble.Target { return c.targets }

// SetTargets replaces the sector targets.
func (c *Calc) SetTargets(targets []ensemble.Target) {
	c.targets = targets
}

// SetSolver replaces the eigensolver backend.
func (c *Calc) SetSolver(s Solver) { c.solver = s }

// TargetGrid targets every irrep spanned by the orbitals, crossed
// with all alpha and beta occupations within window of half filling.
// A window of 2 reproduces the usual grand canonical sector grid.
func (c *Calc) TargetGrid(window int) {
	seen := map[pointgroup.Irrep]bool{}
	irreps := []pointgroup.Irrep{}
	for _, ir := range c.orbSym {
		if !seen[ir] {
			seen[ir] = true
			irreps = append(irreps, ir)
		}
	}

	half := c.dump.NElec / 2
	lo, hi := half-window, half+window
	if lo < 0 {
		lo = 0
	}
	if hi > c.dump.NOrb {
		hi = c.dump.NOrb
	}

	targets := []ensemble.Target{}
	for _, ir := range irreps {
		for na := lo; na <= hi; na++ {
			for nb := lo; nb <= hi; nb++ {
				targets = append(targets, ensemble.Target{
					NElec: na + nb,
					TwoSz: na - nb,
					Irrep: ir,
				})
			}
		}
	}
	c.targets = targets
}

// Result holds the thermal averages of one Run.
type Result struct {
	Beta float64
	Mu   float64

	// States is the spectrum the ensemble is built from, and
	// Weights its Boltzmann weights.
	States  []ensemble.State
	Weights []float64

	// Energy is the ensemble average of E + mu*N.
	Energy float64
	// ParticleNumber is the ensemble average electron count.
	ParticleNumber float64

	// OnePDM has shape (2, n, n) with channels aa, bb.
	OnePDM *mat.Dense
	// NPC has shape (4, n, n) with channels aa, ab, ba, bb, or
	// (1, n, n) holding the total correlation when spin adapted.
	NPC *mat.Dense
	// TwoPDM has shape (3, n, n, n, n) with channels aaaa, abba,
	// bbbb. It is nil when spin adapted.
	TwoPDM *mat.Dense
}

// Run solves for the targeted spectrum and averages it at inverse
// temperature beta and chemical potential mu.
func (c *Calc) Run(ctx context.Context, beta, mu float64) (*Result, error) {
	states, err := c.solver.Solve(ctx, c.targets, c.opt.nroots, mu)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	ws, err := ensemble.Weights(beta, states)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	res := &Result{
		Beta:           beta,
		Mu:             mu,
		States:         states,
		Weights:        ws,
		Energy:         ensemble.Energy(mu, states, ws),
		ParticleNumber: ensemble.ParticleNumber(states, ws),
	}

	pdm1, err := c.average(ctx, ws, c.solver.OnePDM)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	res.OnePDM = ensemble.ReindexOrbitals(ensemble.AssembleOnePDM(pdm1, c.opt.spinAdapted), c.ridx)

	npc, err := c.average(ctx, ws, c.solver.OneNPC)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	res.NPC = ensemble.ReindexOrbitals(ensemble.AssembleNPC(npc, c.opt.spinAdapted), c.ridx)

	if !c.opt.spinAdapted {
		pdm2, err := c.average(ctx, ws, c.solver.TwoPDM)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		assembled, err := ensemble.AssembleTwoPDM(pdm2, false)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		res.TwoPDM = ensemble.ReindexOrbitals(assembled, c.ridx)
	}
	return res, nil
}

func (c *Calc) average(ctx context.Context, ws []float64, property func(context.Context, int) (*mat.Dense, error)) (*mat.Dense, error) {
	tensors := make([]*mat.Dense, 0, len(ws))
	for i := range ws {
		t, err := property(ctx, i)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("state %d", i))
		}
		tensors = append(tensors, t)
	}
	avg, err := ensemble.Average(ws, tensors)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return avg, nil
}

// Artifact file names under a Result's save directory.
const (
	FnameOnePDM   = "ltpdm1"
	FnameNPC      = "ltnpc1"
	FnameTwoPDM   = "ltpdm2.db"
	FnameSpectrum = "spectrum.csv"
)

// Save writes the averaged tensors and the spectrum under dir.
// The one particle matrices are sparse coordinate directories, the
// two particle matrix is an sqlite database.
func (r *Result) Save(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	if err := r.OnePDM.WriteCOO(filepath.Join(dir, FnameOnePDM)); err != nil {
		return errors.Wrap(err, "")
	}
	if err := r.NPC.WriteCOO(filepath.Join(dir, FnameNPC)); err != nil {
		return errors.Wrap(err, "")
	}
	if r.TwoPDM != nil {
		disk, err := mat.CreateDisk(filepath.Join(dir, FnameTwoPDM), r.TwoPDM.Shape()...)
		if err != nil {
			return errors.Wrap(err, "")
		}
		defer disk.Close()
		if err := disk.FromDense(r.TwoPDM); err != nil {
			return errors.Wrap(err, "")
		}
	}

	if err := r.saveSpectrum(filepath.Join(dir, FnameSpectrum)); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (r *Result) saveSpectrum(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "state,energy,nelec,twosz,irrep,multiplicity,weight\n"); err != nil {
		return errors.Wrap(err, "")
	}
	for i, s := range r.States {
		_, err := fmt.Fprintf(f, "%d,%.15g,%d,%d,%d,%d,%.15g\n",
			i, s.Energy, s.NElec, s.TwoSz, s.Irrep, s.Multiplicity, r.Weights[i])
		if err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}
