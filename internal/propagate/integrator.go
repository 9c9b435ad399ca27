package propagate

import (
	"math"
	"time"

	"github.com/kosha/koshatrack/internal/orbit"
)

// state6 is the six-dimensional integration state.
type state6 struct {
	pos orbit.Vec3 // km
	vel orbit.Vec3 // km/s
}

func (s state6) add(o state6) state6 {
	return state6{pos: s.pos.Add(o.pos), vel: s.vel.Add(o.vel)}
}

func (s state6) scale(f float64) state6 {
	return state6{pos: s.pos.Scale(f), vel: s.vel.Scale(f)}
}

func (s state6) isFinite() bool {
	return s.pos.IsFinite() && s.vel.IsFinite()
}

// derivFunc evaluates the state derivative (velocity; two-body plus perturbing
// acceleration) at an absolute epoch.
type derivFunc func(s state6, epoch time.Time) state6

// rk4Step advances the state by h seconds with the classical fourth-order
// Runge-Kutta method.
func rk4Step(f derivFunc, s state6, epoch time.Time, h float64) state6 {
	half := h / 2
	k1 := f(s, epoch)
	k2 := f(s.add(k1.scale(half)), epoch.Add(secondsToDuration(half)))
	k3 := f(s.add(k2.scale(half)), epoch.Add(secondsToDuration(half)))
	k4 := f(s.add(k3.scale(h)), epoch.Add(secondsToDuration(h)))

	incr := k1.add(k2.scale(2)).add(k3.scale(2)).add(k4).scale(h / 6)
	return s.add(incr)
}

// Cash-Karp coefficients for the embedded Runge-Kutta-Fehlberg 4(5) pair.
var (
	ckA = [6]float64{0, 1.0 / 5, 3.0 / 10, 3.0 / 5, 1, 7.0 / 8}
	ckB = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{3.0 / 10, -9.0 / 10, 6.0 / 5},
		{-11.0 / 54, 5.0 / 2, -70.0 / 27, 35.0 / 27},
		{1631.0 / 55296, 175.0 / 512, 575.0 / 13824, 44275.0 / 110592, 253.0 / 4096},
	}
	ckC5 = [6]float64{37.0 / 378, 0, 250.0 / 621, 125.0 / 594, 0, 512.0 / 1771}
	ckC4 = [6]float64{2825.0 / 27648, 0, 18575.0 / 48384, 13525.0 / 55296, 277.0 / 14336, 1.0 / 4}
)

// rkf45Step takes one embedded Cash-Karp step of size h and returns the
// fifth-order solution together with the local truncation error estimate (km,
// position norm dominated).
func rkf45Step(f derivFunc, s state6, epoch time.Time, h float64) (state6, float64) {
	var k [6]state6
	k[0] = f(s, epoch)
	for i := 1; i < 6; i++ {
		y := s
		for j := 0; j < i; j++ {
			if ckB[i][j] != 0 {
				y = y.add(k[j].scale(h * ckB[i][j]))
			}
		}
		k[i] = f(y, epoch.Add(secondsToDuration(h*ckA[i])))
	}

	var sol5, sol4 state6
	sol5, sol4 = s, s
	for i := 0; i < 6; i++ {
		if ckC5[i] != 0 {
			sol5 = sol5.add(k[i].scale(h * ckC5[i]))
		}
		if ckC4[i] != 0 {
			sol4 = sol4.add(k[i].scale(h * ckC4[i]))
		}
	}

	errPos := sol5.pos.Sub(sol4.pos).Norm()
	errVel := sol5.vel.Sub(sol4.vel).Norm()
	return sol5, math.Max(errPos, errVel)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
