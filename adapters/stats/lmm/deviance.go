package lmm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// problem holds the cross-products of a design. The profiled ML deviance at
// a given θ only needs these, so each evaluation costs O(q³) regardless of
// the number of observations.
type problem struct {
	n, p, q int
	blocks  []reBlock
	yty     float64
	xty     []float64 // p
	xtx     []float64 // p x p
	zty     []float64 // q
	ztx     []float64 // q x p
	ztz     []float64 // q x q
}

func newProblem(d *design) *problem {
	pr := &problem{n: d.n(), p: d.p(), q: d.q, blocks: d.blocks}
	p, q := pr.p, pr.q
	pr.xty = make([]float64, p)
	pr.xtx = make([]float64, p*p)
	pr.zty = make([]float64, q)
	pr.ztx = make([]float64, q*p)
	pr.ztz = make([]float64, q*q)

	for i, y := range d.y {
		x := d.x[i]
		pr.yty += y * y
		for a := 0; a < p; a++ {
			pr.xty[a] += x[a] * y
			for b := 0; b < p; b++ {
				pr.xtx[a*p+b] += x[a] * x[b]
			}
		}
		for _, e := range d.z[i] {
			for k, zv := range e.vals {
				c := e.col + k
				pr.zty[c] += zv * y
				for a := 0; a < p; a++ {
					pr.ztx[c*p+a] += zv * x[a]
				}
				for _, f := range d.z[i] {
					for l, wv := range f.vals {
						pr.ztz[c*q+f.col+l] += zv * wv
					}
				}
			}
		}
	}
	return pr
}

// thetaLen is the number of covariance parameters.
func (pr *problem) thetaLen() int {
	n := 0
	for _, b := range pr.blocks {
		n += b.dim * (b.dim + 1) / 2
	}
	return n
}

// initialTheta is the identity relative covariance factor.
func (pr *problem) initialTheta() []float64 {
	theta := make([]float64, 0, pr.thetaLen())
	for _, b := range pr.blocks {
		for k := 0; k < b.dim; k++ {
			for j := k; j < b.dim; j++ {
				if j == k {
					theta = append(theta, 1)
				} else {
					theta = append(theta, 0)
				}
			}
		}
	}
	return theta
}

// factors unpacks θ into one lower-triangular dim x dim factor per block,
// column by column. Diagonal entries enter as absolute values.
func (pr *problem) factors(theta []float64) [][][]float64 {
	out := make([][][]float64, len(pr.blocks))
	pos := 0
	for bi, b := range pr.blocks {
		t := make([][]float64, b.dim)
		for j := range t {
			t[j] = make([]float64, b.dim)
		}
		for k := 0; k < b.dim; k++ {
			for j := k; j < b.dim; j++ {
				v := theta[pos]
				if j == k {
					v = math.Abs(v)
				}
				t[j][k] = v
				pos++
			}
		}
		out[bi] = t
	}
	return out
}

// normalizeTheta applies the diagonal sign convention to θ.
func (pr *problem) normalizeTheta(theta []float64) []float64 {
	out := append([]float64(nil), theta...)
	pos := 0
	for _, b := range pr.blocks {
		for k := 0; k < b.dim; k++ {
			for j := k; j < b.dim; j++ {
				if j == k {
					out[pos] = math.Abs(out[pos])
				}
				pos++
			}
		}
	}
	return out
}

// applyLambdaT returns Λᵀ B for a q x m row-major B.
func (pr *problem) applyLambdaT(t [][][]float64, b []float64, m int) []float64 {
	out := make([]float64, len(b))
	for bi, blk := range pr.blocks {
		tb := t[bi]
		for l := range blk.levels {
			c0 := blk.offset + l*blk.dim
			for k := 0; k < blk.dim; k++ {
				dst := out[(c0+k)*m : (c0+k+1)*m]
				for j := k; j < blk.dim; j++ {
					coef := tb[j][k]
					if coef == 0 {
						continue
					}
					src := b[(c0+j)*m : (c0+j+1)*m]
					for c := range dst {
						dst[c] += coef * src[c]
					}
				}
			}
		}
	}
	return out
}

func transpose(a []float64, rows, cols int) []float64 {
	out := make([]float64, len(a))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = a[r*cols+c]
		}
	}
	return out
}

// solution is the penalized least-squares solution at one θ.
type solution struct {
	ok       bool
	deviance float64
	beta     []float64
	// unscaledCov is (RXᵀRX)⁻¹; multiply by sigma2 for Var(β).
	unscaledCov *mat.SymDense
	sigma2      float64
	factors     [][][]float64
}

// evaluate computes the profiled ML deviance at θ:
//
//	d(θ) = log|ΛᵀZᵀZΛ + I| + n(1 + log(2π r²(θ)/n))
//
// where r² is the penalized residual sum of squares. With full set the
// fixed-effect estimates and their unscaled covariance are returned too.
func (pr *problem) evaluate(theta []float64, full bool) solution {
	q, p, n := pr.q, pr.p, pr.n
	t := pr.factors(theta)

	// P = Λᵀ ZᵀZ Λ + I
	left := pr.applyLambdaT(t, pr.ztz, q)
	pdata := pr.applyLambdaT(t, transpose(left, q, q), q)
	for i := 0; i < q; i++ {
		pdata[i*q+i]++
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(q, pdata)); !ok {
		return solution{}
	}
	logDet := chol.LogDet()

	cu := mat.NewVecDense(q, pr.applyLambdaT(t, pr.zty, 1))
	var wy mat.VecDense
	if err := chol.SolveVecTo(&wy, cu); err != nil {
		return solution{}
	}
	r2 := pr.yty - mat.Dot(cu, &wy)

	var beta []float64
	var unscaled *mat.SymDense
	if p > 0 {
		cx := mat.NewDense(q, p, pr.applyLambdaT(t, pr.ztx, p))
		var w mat.Dense
		if err := chol.SolveTo(&w, cx); err != nil {
			return solution{}
		}

		// S = XᵀX − CXᵀ P⁻¹ CX, the Schur complement for β.
		var cxw mat.Dense
		cxw.Mul(cx.T(), &w)
		sdata := make([]float64, p*p)
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				sdata[a*p+b] = pr.xtx[a*p+b] - cxw.At(a, b)
			}
		}
		var schol mat.Cholesky
		if ok := schol.Factorize(mat.NewSymDense(p, sdata)); !ok {
			return solution{}
		}

		rhs := mat.NewVecDense(p, nil)
		rhs.MulVec(cx.T(), &wy)
		xty := mat.NewVecDense(p, append([]float64(nil), pr.xty...))
		rhs.SubVec(xty, rhs)

		var b mat.VecDense
		if err := schol.SolveVecTo(&b, rhs); err != nil {
			return solution{}
		}

		// r² = yᵀy − uᵀ CU − βᵀ Xᵀy with u = P⁻¹(CU − CX β); expanded so only
		// already-computed quantities appear.
		var wb mat.VecDense
		wb.MulVec(&w, &b)
		u := mat.NewVecDense(q, nil)
		u.SubVec(&wy, &wb)
		r2 = pr.yty - mat.Dot(u, cu) - mat.Dot(&b, xty)

		beta = make([]float64, p)
		for i := range beta {
			beta[i] = b.AtVec(i)
		}
		if full {
			unscaled = mat.NewSymDense(p, nil)
			if err := schol.InverseTo(unscaled); err != nil {
				return solution{}
			}
		}
	}

	if !(r2 > 0) || math.IsNaN(logDet) {
		return solution{}
	}
	fn := float64(n)
	dev := logDet + fn*(1+math.Log(2*math.Pi*r2/fn))
	if math.IsNaN(dev) || math.IsInf(dev, 0) {
		return solution{}
	}
	return solution{
		ok:          true,
		deviance:    dev,
		beta:        beta,
		unscaledCov: unscaled,
		sigma2:      r2 / fn,
		factors:     t,
	}
}
