// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta checks that got is within delta of want.
func AssertInDelta(t *testing.T, got, want, delta float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > delta {
		t.Errorf("got %v, want %v (±%v)", got, want, delta)
	}
}

// AssertVecInDelta checks that each component of got is within delta of want.
func AssertVecInDelta(t *testing.T, got, want r3.Vec, delta float64) {
	t.Helper()
	if d := r3.Norm(r3.Sub(got, want)); math.IsNaN(d) || d > delta {
		t.Errorf("got %v, want %v (±%v)", got, want, delta)
	}
}

// AssertQuatEqual checks that two unit quaternions represent the same
// rotation, treating q and -q as equal.
func AssertQuatEqual(t *testing.T, got, want quat.Number, delta float64) {
	t.Helper()
	dot := got.Real*want.Real + got.Imag*want.Imag + got.Jmag*want.Jmag + got.Kmag*want.Kmag
	if math.Abs(math.Abs(dot)-1) > delta {
		t.Errorf("got rotation %v, want %v", got, want)
	}
}

// Deg converts degrees to radians, for readable angle literals in tests.
func Deg(d float64) float64 { return d * math.Pi / 180 }
