package fcidump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Read parses an FCIDUMP file.
func Read(path string) (*FCIDUMP, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()

	d, err := read(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return d, nil
}

func read(r io.Reader) (*FCIDUMP, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	header, err := readHeader(scanner)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	d, err := parseHeader(header)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	// Unrestricted integral blocks are delimited by zero records.
	section := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 5 {
			return nil, errors.Errorf("bad record %q", scanner.Text())
		}
		v, err := strconv.ParseFloat(strings.Replace(fields[0], "D", "E", 1), 64)
		if err != nil {
			return nil, errors.Wrap(err, scanner.Text())
		}
		var ijkl [4]int
		for i, s := range fields[1:] {
			if ijkl[i], err = strconv.Atoi(s); err != nil {
				return nil, errors.Wrap(err, scanner.Text())
			}
		}
		i, j, k, l := ijkl[0], ijkl[1], ijkl[2], ijkl[3]

		if i == 0 && j == 0 && k == 0 && l == 0 {
			if !d.Restricted && v == 0 {
				section++
				continue
			}
			d.ECore = v
			continue
		}

		switch {
		case d.Restricted && k == 0:
			d.SetOneBody(Alpha, i-1, j-1, v)
		case d.Restricted:
			d.SetTwoBody(AA, i-1, j-1, k-1, l-1, v)
		case section <= 2:
			d.SetTwoBody(SpinPair(section), i-1, j-1, k-1, l-1, v)
		case section == 3:
			d.SetOneBody(Alpha, i-1, j-1, v)
		case section == 4:
			d.SetOneBody(Beta, i-1, j-1, v)
		default:
			return nil, errors.Errorf("record %q after core energy section", scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return d, nil
}

// readHeader collects the namelist text up to and including the terminator,
// which may be &END, /END or a bare slash, possibly sharing a line with keys.
func readHeader(scanner *bufio.Scanner) (string, error) {
	var sb strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		upper := strings.ToUpper(line)
		for _, term := range []string{"&END", "/END", "/"} {
			if i := strings.Index(upper, term); i >= 0 {
				sb.WriteString(line[:i])
				return sb.String(), nil
			}
		}
		sb.WriteString(line)
		sb.WriteString(" ")
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "")
	}
	return "", errors.New("missing namelist terminator")
}

func parseHeader(header string) (*FCIDUMP, error) {
	header = strings.ReplaceAll(header, ",", " ")
	header = strings.ReplaceAll(header, "=", " = ")
	fields := strings.Fields(header)

	values := make(map[string][]int)
	var key string
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		switch {
		case strings.HasPrefix(tok, "&"):
			continue
		case i+1 < len(fields) && fields[i+1] == "=":
			key = strings.ToUpper(tok)
			i++
		default:
			// Non-integer values such as .TRUE. belong to keys we do not use.
			n, err := strconv.Atoi(tok)
			if err != nil {
				continue
			}
			values[key] = append(values[key], n)
		}
	}

	single := func(key string, required bool) (int, error) {
		vs := values[key]
		switch {
		case len(vs) == 1:
			return vs[0], nil
		case len(vs) == 0 && !required:
			return 0, nil
		default:
			return 0, errors.Errorf("key %s: %v", key, vs)
		}
	}

	norb, err := single("NORB", true)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	nelec, err := single("NELEC", true)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	twos, err := single("MS2", false)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	isym, err := single("ISYM", false)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if isym == 0 {
		isym = 1
	}
	iuhf, err := single("IUHF", false)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	orbSym := values["ORBSYM"]
	if len(orbSym) == 0 {
		orbSym = make([]int, norb)
		for i := range orbSym {
			orbSym[i] = 1
		}
	}
	if len(orbSym) != norb {
		return nil, errors.Errorf("%d orbsym entries for %d orbitals", len(orbSym), norb)
	}

	if iuhf != 0 {
		return NewUnrestricted(norb, nelec, twos, isym, orbSym), nil
	}
	return NewRestricted(norb, nelec, twos, isym, orbSym), nil
}

// Write serializes the integral set to path in FCIDUMP format.
func (d *FCIDUMP) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := bufio.NewWriter(f)

	err = d.write(w)
	if err1 := w.Flush(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

func (d *FCIDUMP) write(w io.Writer) error {
	syms := make([]string, 0, d.NOrb)
	for _, s := range d.OrbSym {
		syms = append(syms, strconv.Itoa(s))
	}
	uhf := ""
	if !d.Restricted {
		uhf = " IUHF=1,"
	}
	_, err := fmt.Fprintf(w, "&FCI NORB=%4d,NELEC=%3d,MS2=%2d,%s\n  ORBSYM=%s,\n  ISYM=%d,\n&END\n",
		d.NOrb, d.NElec, d.TwoS, uhf, strings.Join(syms, ","), d.ISym)
	if err != nil {
		return errors.Wrap(err, "")
	}

	record := func(v float64, i, j, k, l int) error {
		if _, err := fmt.Fprintf(w, "%20.12E%4d%4d%4d%4d\n", v, i, j, k, l); err != nil {
			return errors.Wrap(err, "")
		}
		return nil
	}

	if d.Restricted {
		if err := d.writeTwoBody(record, AA); err != nil {
			return err
		}
		if err := d.writeOneBody(record, Alpha); err != nil {
			return err
		}
		return record(d.ECore, 0, 0, 0, 0)
	}

	for _, sp := range []SpinPair{AA, BB, AB} {
		if err := d.writeTwoBody(record, sp); err != nil {
			return err
		}
		if err := record(0, 0, 0, 0, 0); err != nil {
			return err
		}
	}
	for _, s := range []Spin{Alpha, Beta} {
		if err := d.writeOneBody(record, s); err != nil {
			return err
		}
		if err := record(0, 0, 0, 0, 0); err != nil {
			return err
		}
	}
	return record(d.ECore, 0, 0, 0, 0)
}

func (d *FCIDUMP) writeOneBody(record func(float64, int, int, int, int) error, s Spin) error {
	for i := 0; i < d.NOrb; i++ {
		for j := 0; j <= i; j++ {
			v := d.OneBody(s, i, j)
			if v == 0 {
				continue
			}
			if err := record(v, i+1, j+1, 0, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *FCIDUMP) writeTwoBody(record func(float64, int, int, int, int) error, sp SpinPair) error {
	t := d.twoBodyBlock(sp)
	for i := 0; i < d.NOrb; i++ {
		for j := 0; j <= i; j++ {
			pij := i*(i+1)/2 + j
			for k := 0; k < d.NOrb; k++ {
				for l := 0; l <= k; l++ {
					if t.bra8 && k*(k+1)/2+l > pij {
						continue
					}
					v := t.at(i, j, k, l)
					if v == 0 {
						continue
					}
					if err := record(v, i+1, j+1, k+1, l+1); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
