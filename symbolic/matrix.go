package symbolic

import (
	"fmt"
	"math/big"
	"strings"
)

// ============================================================
// RatMatrix: exact rational matrix
// ============================================================

// RatMatrix is a dense row-major matrix of exact rationals.
type RatMatrix struct {
	rows, cols int
	data       []*big.Rat
}

func NewRatMatrix(rows, cols int) *RatMatrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("symbolic: negative matrix dimensions %dx%d", rows, cols))
	}
	data := make([]*big.Rat, rows*cols)
	for i := range data {
		data[i] = new(big.Rat)
	}
	return &RatMatrix{rows: rows, cols: cols, data: data}
}

// RatMatrixFromInts builds a matrix from integer rows of equal length.
func RatMatrixFromInts(rows [][]int64) *RatMatrix {
	if len(rows) == 0 {
		return NewRatMatrix(0, 0)
	}
	m := NewRatMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.cols {
			panic(fmt.Sprintf("symbolic: row %d has %d entries, want %d", i, len(r), m.cols))
		}
		for j, v := range r {
			m.data[i*m.cols+j].SetInt64(v)
		}
	}
	return m
}

func (m *RatMatrix) checkBounds(row, col int) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Sprintf("symbolic: index (%d,%d) out of range for %dx%d matrix", row, col, m.rows, m.cols))
	}
}

// At returns a copy of the entry at (row, col).
func (m *RatMatrix) At(row, col int) *big.Rat {
	m.checkBounds(row, col)
	return new(big.Rat).Set(m.data[row*m.cols+col])
}

func (m *RatMatrix) Set(row, col int, v *big.Rat) {
	m.checkBounds(row, col)
	m.data[row*m.cols+col].Set(v)
}

func (m *RatMatrix) Rows() int { return m.rows }
func (m *RatMatrix) Cols() int { return m.cols }

func (m *RatMatrix) Clone() *RatMatrix {
	c := NewRatMatrix(m.rows, m.cols)
	for i, v := range m.data {
		c.data[i].Set(v)
	}
	return c
}

func (m *RatMatrix) String() string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("[")
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(RatNum(m.data[i*m.cols+j]).String())
		}
		b.WriteString("]")
	}
	b.WriteString("]")
	return b.String()
}

// RREF returns the reduced row echelon form of m together with the pivot
// column of every non-zero row. m is not modified.
func (m *RatMatrix) RREF() (*RatMatrix, []int) {
	r := m.Clone()
	at := func(i, j int) *big.Rat { return r.data[i*r.cols+j] }
	var pivots []int
	lead := 0
	tmp := new(big.Rat)
	for col := 0; col < r.cols && lead < r.rows; col++ {
		pivot := -1
		for i := lead; i < r.rows; i++ {
			if at(i, col).Sign() != 0 {
				pivot = i
				break
			}
		}
		if pivot < 0 {
			continue
		}
		if pivot != lead {
			for j := 0; j < r.cols; j++ {
				r.data[pivot*r.cols+j], r.data[lead*r.cols+j] = r.data[lead*r.cols+j], r.data[pivot*r.cols+j]
			}
		}
		inv := new(big.Rat).Inv(at(lead, col))
		for j := col; j < r.cols; j++ {
			at(lead, j).Mul(at(lead, j), inv)
		}
		for i := 0; i < r.rows; i++ {
			if i == lead || at(i, col).Sign() == 0 {
				continue
			}
			f := new(big.Rat).Set(at(i, col))
			for j := col; j < r.cols; j++ {
				at(i, j).Sub(at(i, j), tmp.Mul(f, at(lead, j)))
			}
		}
		pivots = append(pivots, col)
		lead++
	}
	return r, pivots
}

func (m *RatMatrix) Rank() int {
	_, pivots := m.RREF()
	return len(pivots)
}

// NullSpace returns a basis of {x : m·x = 0}, one vector per free column.
// Each basis vector has a 1 in its free column.
func (m *RatMatrix) NullSpace() [][]*big.Rat {
	r, pivots := m.RREF()
	isPivot := make([]bool, m.cols)
	for _, p := range pivots {
		isPivot[p] = true
	}
	var basis [][]*big.Rat
	for free := 0; free < m.cols; free++ {
		if isPivot[free] {
			continue
		}
		v := make([]*big.Rat, m.cols)
		for j := range v {
			v[j] = new(big.Rat)
		}
		v[free].SetInt64(1)
		for row, p := range pivots {
			v[p].Neg(r.data[row*r.cols+free])
		}
		basis = append(basis, v)
	}
	return basis
}

// IntegerVector scales v by the least common multiple of its denominators and
// divides out the greatest common divisor, giving the smallest integer vector
// parallel to v.
func IntegerVector(v []*big.Rat) []*big.Int {
	lcm := big.NewInt(1)
	g := new(big.Int)
	for _, x := range v {
		d := x.Denom()
		g.GCD(nil, nil, lcm, d)
		lcm.Mul(lcm, new(big.Int).Quo(d, g))
	}
	out := make([]*big.Int, len(v))
	gcd := new(big.Int)
	for i, x := range v {
		n := new(big.Int).Mul(x.Num(), new(big.Int).Quo(lcm, x.Denom()))
		out[i] = n
		gcd.GCD(nil, nil, gcd, new(big.Int).Abs(n))
	}
	if gcd.Sign() > 0 && gcd.Cmp(big.NewInt(1)) != 0 {
		for _, n := range out {
			n.Quo(n, gcd)
		}
	}
	return out
}
