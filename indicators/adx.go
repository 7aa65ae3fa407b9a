package indicators

import (
	"fmt"
	"math"
)

// ADX is a streaming Average Directional Index (Wilder).
//
// Warmup: N periods build the initial smoothed TR/+DM/-DM, then N DX values
// seed the first ADX, so roughly 2N bars pass before Ready.
type ADX struct {
	n    int
	name string

	prevHigh  float64
	prevLow   float64
	prevClose float64
	hasPrev   bool
	periods   int
	ready     bool

	adx     float64
	plusDI  float64
	minusDI float64

	// accumulation for the first N periods
	sumTR      float64
	sumPlusDM  float64
	sumMinusDM float64

	// Wilder smoothed values after initialization
	smTR      float64
	smPlusDM  float64
	smMinusDM float64

	// seeding ADX: average of the first N DX values
	dxSum   float64
	dxCount int
}

func NewADX(period int) *ADX {
	if period <= 0 {
		panic("ADX period must be > 0")
	}
	return &ADX{n: period, name: fmt.Sprintf("ADX(%d)", period)}
}

func (a *ADX) Name() string { return a.name }
func (a *ADX) Ready() bool  { return a.ready }

func (a *ADX) Value() float64   { return a.adx }
func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }

func (a *ADX) Reset() {
	*a = ADX{n: a.n, name: a.name}
}

// Update consumes the next closed bar's high, low and close.
func (a *ADX) Update(high, low, close float64) {
	if !a.hasPrev {
		a.prevHigh, a.prevLow, a.prevClose = high, low, close
		a.hasPrev = true
		return
	}

	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))

	upMove := high - a.prevHigh
	downMove := a.prevLow - low

	var plusDM, minusDM float64
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	a.prevHigh, a.prevLow, a.prevClose = high, low, close
	a.periods++
	nf := float64(a.n)

	if a.periods <= a.n {
		a.sumTR += tr
		a.sumPlusDM += plusDM
		a.sumMinusDM += minusDM
		if a.periods == a.n {
			a.smTR = a.sumTR
			a.smPlusDM = a.sumPlusDM
			a.smMinusDM = a.sumMinusDM
			a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
			a.dxSum = dx(a.plusDI, a.minusDI)
			a.dxCount = 1
		}
		return
	}

	// Wilder smoothing: smoothed = prior - prior/N + current
	a.smTR = a.smTR - a.smTR/nf + tr
	a.smPlusDM = a.smPlusDM - a.smPlusDM/nf + plusDM
	a.smMinusDM = a.smMinusDM - a.smMinusDM/nf + minusDM

	a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
	dxVal := dx(a.plusDI, a.minusDI)

	if !a.ready {
		a.dxSum += dxVal
		a.dxCount++
		if a.dxCount >= a.n {
			a.adx = a.dxSum / nf
			a.ready = true
		}
		return
	}
	a.adx = (a.adx*(nf-1) + dxVal) / nf
}

func di(smPlusDM, smMinusDM, smTR float64) (plusDI, minusDI float64) {
	if smTR <= 0 {
		return 0, 0
	}
	return 100 * smPlusDM / smTR, 100 * smMinusDM / smTR
}

func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}
