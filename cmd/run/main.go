// Command run computes thermal averages over a grid of inverse
// temperatures and prints a summary table.
//
// The calculation is described by a TOML file:
//
//	FCIDUMP = "data/FCIDUMP"
//	PointGroup = "d2h"
//	Betas = [1.0, 5.0, 20.0]
//	Mu = -1.0
//
// Finished temperatures are skipped on restart.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"github.com/jlatone/ltdmrg"
)

const fnameDone = "done.txt"

var (
	confPath = flag.String("c", "ltdmrg.toml", "configuration file")
)

type RawConf struct {
	FCIDUMP     string
	PointGroup  string
	Betas       []float64
	Mu          float64
	NRoots      int
	SpinAdapted bool
	Reorder     bool
	Window      int
	OutDir      string
}

type Config struct {
	FCIDUMP    string
	PointGroup string
	Betas      []float64
	Mu         float64
	Window     int
	OutDir     string
	Options    ltdmrg.Options
}

// Env overrides parts of the configuration from the environment.
type Env struct {
	OutDir  string `env:"LTDMRG_OUTDIR"`
	Threads int    `env:"LTDMRG_THREADS"`
}

func (rc RawConf) ToConfig() (Config, error) {
	if rc.FCIDUMP == "" {
		return Config{}, errors.Errorf("no FCIDUMP")
	}
	if len(rc.Betas) == 0 {
		return Config{}, errors.Errorf("no Betas")
	}
	conf := Config{
		FCIDUMP:    rc.FCIDUMP,
		PointGroup: rc.PointGroup,
		Betas:      rc.Betas,
		Mu:         rc.Mu,
		Window:     rc.Window,
		OutDir:     rc.OutDir,
	}
	conf.Options = ltdmrg.NewOptions().
		NRoots(rc.NRoots).
		SpinAdapted(rc.SpinAdapted).
		Reorder(rc.Reorder)
	return conf, nil
}

func loadConfig(fpath string) (Config, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	// Defaults.
	rc := RawConf{
		PointGroup: "d2h",
		NRoots:     10,
		Reorder:    true,
		Window:     2,
		OutDir:     filepath.Join("runs", "ltdmrg"),
	}
	if err := toml.Unmarshal(b, &rc); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	conf, err := rc.ToConfig()
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	if e.OutDir != "" {
		conf.OutDir = e.OutDir
	}
	if e.Threads > 0 {
		runtime.GOMAXPROCS(e.Threads)
	}
	return conf, nil
}

func solve(ctx context.Context, dir string, calc *ltdmrg.Calc, beta, mu float64) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	res, err := calc.Run(ctx, beta, mu)
	if err != nil {
		return errors.Wrap(err, "")
	}
	for i, s := range res.States {
		log.Printf("beta %f [State %3d] = %20.15f nelec %d twosz %+d irrep %d weight %.6f",
			beta, i, s.Energy, s.NElec, s.TwoSz, s.Irrep, res.Weights[i])
	}
	log.Printf("beta %f energy %20.15f nelec %f", beta, res.Energy, res.ParticleNumber)

	if err := res.Save(dir); err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

type Summary struct {
	beta           float64
	energy         float64
	particleNumber float64
}

func gather(dir string, mu float64) ([]Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	summaries := make([]Summary, 0)
	for _, ent := range entries {
		beta, err := strconv.ParseFloat(ent.Name(), 64)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", ent))
		}
		s, err := readSpectrum(filepath.Join(dir, ent.Name(), ltdmrg.FnameSpectrum), mu)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", ent))
		}
		s.beta = beta
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// readSpectrum rebuilds the ensemble averages of one finished
// temperature from its saved spectrum.
func readSpectrum(fpath string, mu float64) (Summary, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return Summary{}, errors.Wrap(err, "")
	}
	defer f.Close()
	r := csv.NewReader(f)

	// Header.
	if _, err := r.Read(); err != nil {
		return Summary{}, errors.Wrap(err, "")
	}
	var s Summary
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Summary{}, errors.Wrap(err, "")
		}
		energy, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return Summary{}, errors.Wrap(err, record[1])
		}
		nelec, err := strconv.Atoi(record[2])
		if err != nil {
			return Summary{}, errors.Wrap(err, record[2])
		}
		w, err := strconv.ParseFloat(record[6], 64)
		if err != nil {
			return Summary{}, errors.Wrap(err, record[6])
		}
		s.energy += w * (energy + mu*float64(nelec))
		s.particleNumber += w * float64(nelec)
	}
	return s, nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	conf, err := loadConfig(*confPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.MkdirAll(conf.OutDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	calc, err := ltdmrg.FromFCIDUMP(conf.PointGroup, conf.FCIDUMP, conf.Options)
	if err != nil {
		return errors.Wrap(err, "")
	}
	calc.TargetGrid(conf.Window)

	ctx := context.Background()
	for _, beta := range conf.Betas {
		dir := filepath.Join(conf.OutDir, fmt.Sprintf("%f", beta))
		if err := solve(ctx, dir, calc, beta, conf.Mu); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%f", beta))
		}
		log.Printf("%f done", beta)
	}

	summaries, err := gather(conf.OutDir, conf.Mu)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("beta,energy,nelec\n")
	for _, s := range summaries {
		fmt.Printf("%f,%f,%f\n", s.beta, s.energy, s.particleNumber)
	}
	return nil
}
