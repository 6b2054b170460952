package mat

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableTensor = "t"
	tableShape  = "shape"
)

// DiskTensor is a tensor backed by a sqlite database, used for property
// tensors too large to keep resident, such as two-particle density matrices.
// Zero elements are not stored.
type DiskTensor struct {
	Path    string
	shape   []int
	strides []int

	db *sql.DB
}

// CreateDisk creates a new disk tensor of the given shape, truncating any
// existing database at path.
func CreateDisk(path string, shape ...int) (*DiskTensor, error) {
	t := &DiskTensor{Path: path, shape: slices.Clone(shape)}
	t.strides = strides(t.shape)

	var err error
	t.db, err = newDB(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := t.writeShape(); err != nil {
		t.db.Close()
		return nil, errors.Wrap(err, "")
	}
	return t, nil
}

// OpenDisk opens a previously written disk tensor.
func OpenDisk(path string) (*DiskTensor, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	t := &DiskTensor{Path: path, db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT dim FROM %s ORDER BY axis`, tableShape)
	rows, err := db.QueryContext(ctx, sqlStr)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()
	for rows.Next() {
		var dim int
		if err := rows.Scan(&dim); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "")
		}
		t.shape = append(t.shape, dim)
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	t.strides = strides(t.shape)
	return t, nil
}

func (t *DiskTensor) Close() error {
	return t.db.Close()
}

func (t *DiskTensor) Shape() []int { return t.shape }

func (t *DiskTensor) flat(ijk []int) int {
	if len(ijk) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", ijk, t.shape))
	}
	f := 0
	for i, x := range ijk {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("%#v %#v", ijk, t.shape))
		}
		f += x * t.strides[i]
	}
	return f
}

func (t *DiskTensor) At(ijk ...int) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT v FROM %s WHERE i=?`, tableTensor)
	var v float64
	err := t.db.QueryRowContext(ctx, sqlStr, t.flat(ijk)).Scan(&v)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return math.NaN(), errors.Wrap(err, "")
	default:
		return v, nil
	}
}

func (t *DiskTensor) SetAt(ijk []int, v float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return setItem(ctx, t.db, t.flat(ijk), v)
}

// FromDense bulk-writes a dense tensor of the same shape in one transaction.
func (t *DiskTensor) FromDense(d *Dense) error {
	if !slices.Equal(t.shape, d.shape) {
		return errors.Errorf("%#v %#v", t.shape, d.shape)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (i, v) VALUES (?, ?)`, tableTensor)
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "")
	}
	for i, v := range d.data {
		if v == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, i, v); err != nil {
			stmt.Close()
			tx.Rollback()
			return errors.Wrap(err, "")
		}
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// ToDense reads the whole tensor into memory.
func (t *DiskTensor) ToDense() (*Dense, error) {
	d := DenseZeros(t.shape...)
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT i, v FROM %s ORDER BY i`, tableTensor)
	rows, err := t.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()
	for rows.Next() {
		var i int
		var v float64
		if err := rows.Scan(&i, &v); err != nil {
			return nil, errors.Wrap(err, "")
		}
		d.data[i] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return d, nil
}

// NumNonZero returns the number of stored elements.
func (t *DiskTensor) NumNonZero() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT count(1) FROM %s`, tableTensor)
	var n int
	if err := t.db.QueryRowContext(ctx, sqlStr).Scan(&n); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return n, nil
}

func (t *DiskTensor) writeShape() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (axis, dim) VALUES (?, ?)`, tableShape)
	for axis, dim := range t.shape {
		if _, err := t.db.ExecContext(ctx, sqlStr, axis, dim); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

func setItem(ctx context.Context, db *sql.DB, i int, v float64) error {
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (i, v) VALUES (?, ?)`, tableTensor)
	args := []any{i, v}
	if v == 0 {
		sqlStr = fmt.Sprintf(`DELETE FROM %s WHERE i=?`, tableTensor)
		args = []any{i}
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, sqlStr := range []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableTensor),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableShape),
		fmt.Sprintf(`CREATE TABLE %s (i INTEGER PRIMARY KEY, v REAL) STRICT`, tableTensor),
		fmt.Sprintf(`CREATE TABLE %s (axis INTEGER PRIMARY KEY, dim INTEGER) STRICT`, tableShape),
	} {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
