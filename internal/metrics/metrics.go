// Package metrics derives rate and run-value statistics from normalized
// batting and pitching tables.
//
// Every rate is rounded to three places and a zero denominator yields zero.
package metrics

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reference"
)

// Places is the published precision of every derived rate.
const Places = 3

func round(f float64) float64 { return normalize.Round(f, Places) }

// ratio is n/d rounded, or zero when d is zero.
func ratio(n, d float64) float64 {
	if d == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return round(n / d)
}

// PlateAppearances is AB + BB + SF + SH + HBP - IBB.
func PlateAppearances(ab, bb, sf, sh, hbp, ibb int64) int64 {
	return ab + bb + sf + sh + hbp - ibb
}

// Singles is H - 2B - 3B - HR.
func Singles(h, doubles, triples, hr int64) int64 {
	return h - doubles - triples - hr
}

// AdjustInningsPitched converts the site's thirds notation (5.1, 5.2) into
// true innings, keeping three places on the fraction.
func AdjustInningsPitched(ip float64) float64 {
	d := decimal.NewFromFloat(ip)
	whole := d.Truncate(0)
	thirds := d.Sub(whole).Mul(decimal.NewFromInt(10)).Div(decimal.NewFromInt(3)).Round(Places)
	return whole.Add(thirds).InexactFloat64()
}

// WOBA weighs each way of reaching base by its league run value.
func WOBA(w reference.LinearWeights, bb, hbp, singles, doubles, triples, hr, pa float64) float64 {
	if pa <= 0 {
		return 0
	}
	n := w.WBB*bb + w.WHBP*hbp + w.W1B*singles + w.W2B*doubles + w.W3B*triples + w.WHR*hr
	return ratio(n, pa)
}

// WRAA is runs above an average hitter over pa.
func WRAA(w reference.LinearWeights, woba, pa float64) float64 {
	if pa <= 0 || w.WOBAScale == 0 {
		return 0
	}
	return round((woba - w.WOBA) / w.WOBAScale * pa)
}

// WRC is total runs created over pa.
func WRC(w reference.LinearWeights, woba, pa float64) float64 {
	if pa <= 0 || w.WOBAScale == 0 {
		return 0
	}
	return round(((woba-w.WOBA)/w.WOBAScale + w.RPerPA) * pa)
}

// FIP is fielding independent pitching scaled to league ERA by cFIP.
func FIP(w reference.LinearWeights, hrAllowed, bb, hb, so, ipAdj float64) float64 {
	if ipAdj <= 0 {
		return 0
	}
	return round((13*hrAllowed+3*(bb+hb)-2*so)/ipAdj + w.CFIP)
}
