// Package kernel implements SPH smoothing kernels.
package kernel

import "math"

// Kernel is a radially symmetric smoothing function with compact support.
// Grad returns the scalar g(r, h) such that the gradient of W at separation
// vector dr equals dr scaled by g; it stays finite as r approaches zero.
type Kernel interface {
	Value(r, h float64) float64
	Grad(r, h float64) float64
	// Radius returns the support in units of h; the kernel vanishes
	// beyond Radius() * h.
	Radius() float64
}

// CubicSpline is the standard M4 cubic spline kernel with support 2h.
type CubicSpline struct{}

const cubicSigma = 1.0 / math.Pi

func (CubicSpline) Radius() float64 { return 2 }

func (CubicSpline) Value(r, h float64) float64 {
	q := r / h
	norm := cubicSigma / (h * h * h)
	switch {
	case q < 1:
		return norm * (1 - 1.5*q*q + 0.75*q*q*q)
	case q < 2:
		d := 2 - q
		return norm * 0.25 * d * d * d
	default:
		return 0
	}
}

func (CubicSpline) Grad(r, h float64) float64 {
	q := r / h
	norm := cubicSigma / (h * h * h * h * h)
	switch {
	case q < 1e-6:
		return -3 * norm
	case q < 1:
		return norm * (-3 + 2.25*q)
	case q < 2:
		d := 2 - q
		return norm * (-0.75 * d * d / q)
	default:
		return 0
	}
}
