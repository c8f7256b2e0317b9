// Package distance materializes learned timegaps as a dense, symmetric matrix
// and derives the transformed matrices the clustering strategies consume.
package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/Veraticus/pickpath/internal/model"
)

var (
	// ErrEmptyItems indicates a matrix was requested for no items.
	ErrEmptyItems = errors.New("distance: item list is empty")
	// ErrDuplicateItem indicates the item ordering contains the same item twice.
	ErrDuplicateItem = errors.New("distance: duplicate item")
	// ErrIndexOutOfBounds indicates a row or column outside the matrix.
	ErrIndexOutOfBounds = errors.New("distance: index out of bounds")
)

// Matrix is a square, row-major matrix over a fixed item ordering.
type Matrix struct {
	index    map[string]int
	items    []string
	data     []float64
	sentinel float64
	n        int
}

// New allocates a zero matrix over items.
func New(items []string, sentinel float64) (*Matrix, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	index := make(map[string]int, len(items))
	for i, item := range items {
		if _, dup := index[item]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, item)
		}
		index[item] = i
	}
	ordered := make([]string, len(items))
	copy(ordered, items)

	n := len(items)
	return &Matrix{
		index:    index,
		items:    ordered,
		data:     make([]float64, n*n),
		sentinel: sentinel,
		n:        n,
	}, nil
}

// Build fills a matrix from a timegap table. Pairs missing from the table get
// the table's sentinel; the diagonal stays zero.
func Build(items []string, table *model.TimegapTable) (*Matrix, error) {
	m, err := New(items, table.Sentinel())
	if err != nil {
		return nil, err
	}
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			d := table.Distance(m.items[i], m.items[j])
			m.data[i*m.n+j] = d
			m.data[j*m.n+i] = d
		}
	}
	return m, nil
}

// Size returns the number of rows (and columns).
func (m *Matrix) Size() int {
	return m.n
}

// Items returns the item ordering. The slice must not be modified.
func (m *Matrix) Items() []string {
	return m.items
}

// Item returns the item at row i.
func (m *Matrix) Item(i int) string {
	return m.items[i]
}

// IndexOf returns the row of an item.
func (m *Matrix) IndexOf(item string) (int, bool) {
	i, ok := m.index[item]
	return i, ok
}

// Sentinel returns the "never observed" distance the matrix was built with.
func (m *Matrix) Sentinel() float64 {
	return m.sentinel
}

// At returns the value at (i, j).
func (m *Matrix) At(i, j int) (float64, error) {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		return 0, fmt.Errorf("At(%d,%d): %w", i, j, ErrIndexOutOfBounds)
	}
	return m.data[i*m.n+j], nil
}

// Set assigns the value at (i, j).
func (m *Matrix) Set(i, j int, v float64) error {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		return fmt.Errorf("Set(%d,%d): %w", i, j, ErrIndexOutOfBounds)
	}
	m.data[i*m.n+j] = v
	return nil
}

// at is the unchecked accessor used by the hot loops in this module.
func (m *Matrix) at(i, j int) float64 {
	return m.data[i*m.n+j]
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	row := make([]float64, m.n)
	copy(row, m.data[i*m.n:(i+1)*m.n])
	return row
}

// Rows returns a copy of the matrix as a slice of rows.
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, m.n)
	for i := range rows {
		rows[i] = m.Row(i)
	}
	return rows
}

// Max returns the largest entry.
func (m *Matrix) Max() float64 {
	peak := math.Inf(-1)
	for _, v := range m.data {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	data := make([]float64, len(m.data))
	copy(data, m.data)
	return &Matrix{
		index:    m.index,
		items:    m.items,
		data:     data,
		sentinel: m.sentinel,
		n:        m.n,
	}
}

// Symmetric reports whether M[i][j] == M[j][i] for every cell.
func (m *Matrix) Symmetric() bool {
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if m.at(i, j) != m.at(j, i) {
				return false
			}
		}
	}
	return true
}

// Dissimilarity returns 1 - d/max(d) for every cell. A matrix whose maximum
// is not positive maps to all ones.
func Dissimilarity(m *Matrix) *Matrix {
	out := m.Clone()
	peak := m.Max()
	for k, v := range m.data {
		if peak > 0 {
			out.data[k] = 1 - v/peak
		} else {
			out.data[k] = 1
		}
	}
	return out
}

// Similarity returns exp(-alpha*d) for every cell with the diagonal forced to 1.
func Similarity(m *Matrix, alpha float64) *Matrix {
	out := m.Clone()
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if i == j {
				out.data[i*m.n+j] = 1
				continue
			}
			out.data[i*m.n+j] = math.Exp(-alpha * m.at(i, j))
		}
	}
	return out
}
