package mat

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	FnameShape = "shape.csv"
	FnameCOO   = "coo.csv"
)

// WriteCOO writes the tensor to dir as a shape file plus one csv record per
// non-zero element, value first and indices after.
func (t *Dense) WriteCOO(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	ss := make([]string, 0, len(t.shape))
	for _, d := range t.shape {
		ss = append(ss, strconv.Itoa(d))
	}
	shapePath := filepath.Join(dir, FnameShape)
	if err := os.WriteFile(shapePath, []byte(strings.Join(ss, ",")), 0644); err != nil {
		return errors.Wrap(err, "")
	}

	f, err := os.Create(filepath.Join(dir, FnameCOO))
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)

	ijk := make([]int, len(t.shape))
	record := make([]string, 1+len(t.shape))
	for flat, v := range t.data {
		if v == 0 {
			continue
		}
		t.digits(flat, ijk)
		record[0] = strconv.FormatFloat(v, 'g', -1, 64)
		for i, x := range ijk {
			record[1+i] = strconv.Itoa(x)
		}
		if err1 := w.Write(record); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
		}
	}

	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

// ReadCOO reads a tensor written by WriteCOO.
func ReadCOO(dir string) (*Dense, error) {
	shapeB, err := os.ReadFile(filepath.Join(dir, FnameShape))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	shapeStrs := strings.Split(strings.TrimSpace(string(shapeB)), ",")
	shape := make([]int, 0, len(shapeStrs))
	for _, s := range shapeStrs {
		d, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Wrap(err, string(shapeB))
		}
		shape = append(shape, d)
	}
	t := DenseZeros(shape...)

	f, err := os.Open(filepath.Join(dir, FnameCOO))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = 1 + len(shape)

	ijk := make([]int, len(shape))
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		v, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, errors.Wrap(err, record[0])
		}
		for i, s := range record[1:] {
			if ijk[i], err = strconv.Atoi(s); err != nil {
				return nil, errors.Wrap(err, s)
			}
		}
		t.SetAt(ijk, v)
	}
	return t, nil
}
