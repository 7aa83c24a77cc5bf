package similarity

import "math"

// Matrix is a dense row-major similarity matrix with values in [0,1].
// Row i corresponds to chunk i of the first document, column j to chunk j
// of the second.
type Matrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"-"`
}

// NewMatrix returns a zero matrix of the given shape.
func NewMatrix(rows, cols int) Matrix {
	rows, cols = max(rows, 0), max(cols, 0)
	return Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Filled returns a matrix with every cell set to v.
func Filled(rows, cols int, v float64) Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

func (m Matrix) At(i, j int) float64 { return m.Data[i*m.Cols+j] }

func (m Matrix) Set(i, j int, v float64) { m.Data[i*m.Cols+j] = v }

// Row returns row i without copying.
func (m Matrix) Row(i int) []float64 { return m.Data[i*m.Cols : (i+1)*m.Cols] }

// Shape reports whether m is rows x cols and backed by enough data.
func (m Matrix) Shape(rows, cols int) bool {
	return m.Rows == rows && m.Cols == cols && len(m.Data) == rows*cols
}

// Conform returns m unchanged when it already has the requested shape.
// Otherwise it returns a zero matrix of that shape holding the overlapping
// cells of m.
func (m Matrix) Conform(rows, cols int) Matrix {
	if m.Shape(rows, cols) {
		return m
	}
	out := NewMatrix(rows, cols)
	rr := min(rows, m.Rows)
	cc := min(cols, m.Cols)
	for i := 0; i < rr; i++ {
		for j := 0; j < cc; j++ {
			if idx := i*m.Cols + j; idx < len(m.Data) {
				out.Set(i, j, m.Data[idx])
			}
		}
	}
	return out
}

// Scores returns the mean of row maxima (doc1), the mean of column maxima
// (doc2) and their average. An empty matrix scores zero.
func Scores(m Matrix) (doc1, doc2, global float64) {
	if m.Rows == 0 || m.Cols == 0 || len(m.Data) < m.Rows*m.Cols {
		return 0, 0, 0
	}
	colMax := make([]float64, m.Cols)
	for j := range colMax {
		colMax[j] = math.Inf(-1)
	}
	var rowSum float64
	for i := 0; i < m.Rows; i++ {
		best := math.Inf(-1)
		for j, v := range m.Row(i) {
			if v > best {
				best = v
			}
			if v > colMax[j] {
				colMax[j] = v
			}
		}
		rowSum += best
	}
	var colSum float64
	for _, v := range colMax {
		colSum += v
	}
	doc1 = rowSum / float64(m.Rows)
	doc2 = colSum / float64(m.Cols)
	return doc1, doc2, (doc1 + doc2) / 2
}

// CosineMatrix computes clamped cosine similarities between every row of a
// and every row of b. Zero vectors score 0.
func CosineMatrix(a, b [][]float64) Matrix {
	m := NewMatrix(len(a), len(b))
	na := norms(a)
	nb := norms(b)
	for i, x := range a {
		if na[i] == 0 {
			continue
		}
		for j, y := range b {
			if nb[j] == 0 {
				continue
			}
			m.Set(i, j, clamp01(dot(x, y)/(na[i]*nb[j])))
		}
	}
	return m
}

func dot(x, y []float64) float64 {
	n := min(len(x), len(y))
	var s float64
	for k := 0; k < n; k++ {
		s += x[k] * y[k]
	}
	return s
}

func norms(vs [][]float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = math.Sqrt(dot(v, v))
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
