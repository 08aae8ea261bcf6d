package content

import "math"

// Matrix is a 2D affine transform [a b c d e f] as used by cm and Tm
type Matrix [6]float64

// Identity returns the identity matrix
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Multiply returns m × other (m applied first)
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		m[0]*other[0] + m[1]*other[2],
		m[0]*other[1] + m[1]*other[3],
		m[2]*other[0] + m[3]*other[2],
		m[2]*other[1] + m[3]*other[3],
		m[4]*other[0] + m[5]*other[2] + other[4],
		m[4]*other[1] + m[5]*other[3] + other[5],
	}
}

// Apply transforms the point (x, y)
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// ScaleX is the length of the transformed x unit vector
func (m Matrix) ScaleX() float64 {
	return math.Hypot(m[0], m[1])
}

// ScaleY is the length of the transformed y unit vector
func (m Matrix) ScaleY() float64 {
	return math.Hypot(m[2], m[3])
}

func matrixFromOperands(ops []Operand) (Matrix, bool) {
	if len(ops) < 6 {
		return Matrix{}, false
	}
	var m Matrix
	for i := 0; i < 6; i++ {
		if ops[len(ops)-6+i].Kind != OperandNumber {
			return Matrix{}, false
		}
		m[i] = ops[len(ops)-6+i].Number
	}
	return m, true
}
