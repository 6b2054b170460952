package ltdmrg

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jlatone/ltdmrg/fcidump"
	"github.com/jlatone/ltdmrg/mat"
)

// dimerDump builds a two site Hubbard model with on-site energy eps
// on the first site, hopping tHop, and repulsion u.
func dimerDump(t *testing.T, orbSym []int, eps, tHop, u float64) *fcidump.FCIDUMP {
	t.Helper()
	h1e := [][]float64{{eps, -tHop}, {-tHop, 0}}
	g2e := make([]float64, 16)
	g2e[0] = u  // (00|00)
	g2e[15] = u // (11|11)
	dump, err := fcidump.InitializeRestricted(2, 0, 1, orbSym, 0, h1e, g2e, 1e-13)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return dump
}

func TestRunDimer(t *testing.T) {
	t.Parallel()
	dump := dimerDump(t, []int{1, 1}, 0, 1, 4)
	calc, err := FromIntegrals("d2h", dump, "", NewOptions().NRoots(100))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	calc.TargetGrid(2)

	ctx := context.Background()
	res, err := calc.Run(ctx, 1, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	var wsum float64
	for _, w := range res.Weights {
		wsum += w
	}
	if math.Abs(wsum-1) > 1e-12 {
		t.Fatalf("%v", wsum)
	}

	var energy float64
	for i, s := range res.States {
		energy += res.Weights[i] * s.Energy
	}
	if math.Abs(energy-res.Energy) > 1e-12 {
		t.Fatalf("%v %v", energy, res.Energy)
	}

	// The trace of the one particle density matrix over both spin
	// channels is the average electron count.
	var trace float64
	for c := 0; c < 2; c++ {
		for p := 0; p < 2; p++ {
			trace += res.OnePDM.At(c, p, p)
		}
	}
	if math.Abs(trace-res.ParticleNumber) > 1e-10 {
		t.Fatalf("%v %v", trace, res.ParticleNumber)
	}

	for i, want := range [][]int{
		{2, 2, 2},
		{4, 2, 2},
		{3, 2, 2, 2, 2},
	} {
		got := [][]int{res.OnePDM.Shape(), res.NPC.Shape(), res.TwoPDM.Shape()}[i]
		if len(got) != len(want) {
			t.Fatalf("%d %v %v", i, got, want)
		}
		for k := range want {
			if got[k] != want[k] {
				t.Fatalf("%d %v %v", i, got, want)
			}
		}
	}

	// At low temperature the ensemble collapses onto the bonding one
	// electron states at energy -tHop.
	cold, err := calc.Run(ctx, 1000, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(cold.Energy-(-1)) > 1e-9 {
		t.Fatalf("%v", cold.Energy)
	}
}

func TestReorderInvariance(t *testing.T) {
	t.Parallel()
	// Orbitals are tagged B1u, Ag, so the symmetry blocked order
	// swaps them. Averages reported in the original order must not
	// change.
	ctx := context.Background()
	results := [2]*Result{}
	for i, reorder := range []bool{true, false} {
		dump := dimerDump(t, []int{5, 1}, -0.2, 0.7, 3)
		calc, err := FromIntegrals("d2h", dump, "", NewOptions().NRoots(100).Reorder(reorder))
		if err != nil {
			t.Fatalf("%+v", err)
		}
		calc.TargetGrid(2)
		if results[i], err = calc.Run(ctx, 2, 0.1); err != nil {
			t.Fatalf("%+v", err)
		}
	}

	if math.Abs(results[0].Energy-results[1].Energy) > 1e-10 {
		t.Fatalf("%v %v", results[0].Energy, results[1].Energy)
	}
	if math.Abs(results[0].ParticleNumber-results[1].ParticleNumber) > 1e-10 {
		t.Fatalf("%v %v", results[0].ParticleNumber, results[1].ParticleNumber)
	}
	if !results[0].OnePDM.Equal(results[1].OnePDM, 1e-10) {
		t.Fatalf("one particle density matrices differ")
	}
	if !results[0].NPC.Equal(results[1].NPC, 1e-10) {
		t.Fatalf("number correlations differ")
	}
	if !results[0].TwoPDM.Equal(results[1].TwoPDM, 1e-10) {
		t.Fatalf("two particle density matrices differ")
	}
}

func TestSpinAdapted(t *testing.T) {
	t.Parallel()
	dump := dimerDump(t, []int{1, 1}, 0, 1, 4)
	calc, err := FromIntegrals("d2h", dump, "", NewOptions().NRoots(100).SpinAdapted(true))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	calc.TargetGrid(2)

	res, err := calc.Run(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if res.TwoPDM != nil {
		t.Fatalf("unexpected two particle density matrix")
	}
	if got := res.NPC.Shape(); got[0] != 1 {
		t.Fatalf("%v", got)
	}
	// Spin averaged channels are identical.
	for p := 0; p < 2; p++ {
		for q := 0; q < 2; q++ {
			if math.Abs(res.OnePDM.At(0, p, q)-res.OnePDM.At(1, p, q)) > 1e-12 {
				t.Fatalf("%d %d", p, q)
			}
		}
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	dump := dimerDump(t, []int{1, 1}, 0.1, 1, 4)
	calc, err := FromIntegrals("d2h", dump, "", NewOptions().NRoots(100))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	calc.TargetGrid(2)
	res, err := calc.Run(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	dir := filepath.Join(t.TempDir(), "beta1")
	if err := res.Save(dir); err != nil {
		t.Fatalf("%+v", err)
	}

	pdm1, err := mat.ReadCOO(filepath.Join(dir, FnameOnePDM))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !pdm1.Equal(res.OnePDM, 1e-13) {
		t.Fatalf("one particle density matrix roundtrip")
	}
	npc, err := mat.ReadCOO(filepath.Join(dir, FnameNPC))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !npc.Equal(res.NPC, 1e-13) {
		t.Fatalf("number correlation roundtrip")
	}

	disk, err := mat.OpenDisk(filepath.Join(dir, FnameTwoPDM))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer disk.Close()
	pdm2, err := disk.ToDense()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !pdm2.Equal(res.TwoPDM, 1e-13) {
		t.Fatalf("two particle density matrix roundtrip")
	}

	if _, err := os.Stat(filepath.Join(dir, FnameSpectrum)); err != nil {
		t.Fatalf("%+v", err)
	}
}

func TestFCIDUMPRoundtrip(t *testing.T) {
	t.Parallel()
	dump := dimerDump(t, []int{5, 1}, -0.3, 0.9, 2)
	path := filepath.Join(t.TempDir(), "FCIDUMP")
	calc, err := FromIntegrals("d2h", dump, path, NewOptions().NRoots(100))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	calc.TargetGrid(2)

	loaded, err := FromFCIDUMP("d2h", path, NewOptions().NRoots(100))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	loaded.TargetGrid(2)

	ctx := context.Background()
	res0, err := calc.Run(ctx, 1, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	res1, err := loaded.Run(ctx, 1, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(res0.Energy-res1.Energy) > 1e-9 {
		t.Fatalf("%v %v", res0.Energy, res1.Energy)
	}
	if !res0.OnePDM.Equal(res1.OnePDM, 1e-9) {
		t.Fatalf("one particle density matrices differ")
	}
}

func TestTargetGrid(t *testing.T) {
	t.Parallel()
	dump := dimerDump(t, []int{5, 1}, 0, 1, 4)
	calc, err := FromIntegrals("d2h", dump, "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	calc.TargetGrid(2)

	// Two distinct irreps, occupations clamped to [0, 2] per spin.
	if got := len(calc.Targets()); got != 2*3*3 {
		t.Fatalf("%d", got)
	}
}
