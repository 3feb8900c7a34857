package normalizers

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/born/tensor"
)

// ExactSpectralNorm computes the largest singular value of the kernel's 2D
// view [numElements/lastDim, lastDim] by full SVD.
//
// This is far more expensive than power iteration and is intended for
// diagnostics and test assertions, not for per-step normalization.
func ExactSpectralNorm[B tensor.Backend](kernel *tensor.Tensor[float32, B]) float64 {
	shape := kernel.Shape()
	lastDim := shape[len(shape)-1]
	rows := shape.NumElements() / lastDim

	data := kernel.Data()
	dense := mat.NewDense(rows, lastDim, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < lastDim; j++ {
			dense.Set(i, j, float64(data[i*lastDim+j]))
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(dense, mat.SVDNone); !ok {
		panic("normalizers: SVD factorization failed")
	}
	return svd.Values(nil)[0]
}

// OrthogonalityError returns the largest absolute deviation of wᵀw (or wwᵀ
// for wide matrices) from the identity, measured on the kernel's 2D view.
//
// A value close to zero means the rows or columns of the smaller dimension
// are approximately orthonormal.
func OrthogonalityError[B tensor.Backend](kernel *tensor.Tensor[float32, B]) float64 {
	shape := kernel.Shape()
	lastDim := shape[len(shape)-1]
	rows := shape.NumElements() / lastDim

	w := kernel.Reshape(rows, lastDim)
	var gram *tensor.Tensor[float32, B]
	if rows <= lastDim {
		gram = w.MatMul(w.T()) // [rows, rows]
	} else {
		gram = w.T().MatMul(w) // [lastDim, lastDim]
	}

	n := gram.Shape()[0]
	data := gram.Data()
	var maxErr float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			err := float64(data[i*n+j]) - want
			if err < 0 {
				err = -err
			}
			if err > maxErr {
				maxErr = err
			}
		}
	}
	return maxErr
}
