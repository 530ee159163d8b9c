package metrics

import (
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reference"
)

// PitchingColumns are appended by AddPitching, in order.
var PitchingColumns = []string{
	"IP-adj", "1B-A", "OBP-against", "BA-against", "SLG-against", "OPS-against",
	"K/PA", "K/9", "BB/PA", "BB/9", "BABIP-against", "FIP", "wOBA-against", "WHIP",
	"Pitches/IP", "IP/App", "Pitches/App", "Pitches/PA", "HR-A/PA", "GO/FO",
}

// AddPitching appends pitching rates to t. When the table carries App, only
// rows with an appearance are kept. With nil weights FIP and wOBA-against
// are zero.
func AddPitching(t *normalize.Table, w *reference.LinearWeights) {
	if t.HasColumn("App") {
		t.Filter(func(r normalize.Record) bool { return r.Int("App") > 0 })
	}

	t.Set("IP-adj", func(r normalize.Record) any { return AdjustInningsPitched(r.Float("IP")) })
	t.Set("1B-A", func(r normalize.Record) any {
		return Singles(r.Int("H"), r.Int("2B-A"), r.Int("3B-A"), r.Int("HR-A"))
	})
	t.Set("OBP-against", func(r normalize.Record) any {
		return ratio(r.Float("H")+r.Float("BB")+r.Float("IBB")+r.Float("HB"), r.Float("BF"))
	})
	t.Set("BA-against", func(r normalize.Record) any { return ratio(r.Float("H"), atBatsAgainst(r)) })
	t.Set("SLG-against", func(r normalize.Record) any {
		return ratio(r.Float("1B-A")+2*r.Float("2B-A")+3*r.Float("3B-A")+4*r.Float("HR-A"), atBatsAgainst(r))
	})
	t.Set("OPS-against", func(r normalize.Record) any {
		return round(r.Float("OBP-against") + r.Float("SLG-against"))
	})
	t.Set("K/PA", func(r normalize.Record) any { return ratio(r.Float("SO"), r.Float("BF")) })
	t.Set("K/9", func(r normalize.Record) any { return ratio(9*r.Float("SO"), r.Float("IP-adj")) })
	t.Set("BB/PA", func(r normalize.Record) any { return ratio(r.Float("BB"), r.Float("BF")) })
	t.Set("BB/9", func(r normalize.Record) any { return ratio(9*r.Float("BB"), r.Float("IP-adj")) })
	t.Set("BABIP-against", func(r normalize.Record) any {
		return ratio(r.Float("H")-r.Float("HR-A"), r.Float("BF")-r.Float("SO")-r.Float("HR-A")+r.Float("SFA"))
	})
	t.Set("FIP", func(r normalize.Record) any {
		if w == nil {
			return 0.0
		}
		return FIP(*w, r.Float("HR-A"), r.Float("BB"), r.Float("HB"), r.Float("SO"), r.Float("IP-adj"))
	})
	t.Set("wOBA-against", func(r normalize.Record) any {
		if w == nil {
			return 0.0
		}
		return WOBA(*w, r.Float("BB"), r.Float("HB"), r.Float("1B-A"), r.Float("2B-A"), r.Float("3B-A"), r.Float("HR-A"), r.Float("BF"))
	})
	t.Set("WHIP", func(r normalize.Record) any { return ratio(r.Float("H")+r.Float("BB"), r.Float("IP-adj")) })
	t.Set("Pitches/IP", func(r normalize.Record) any { return ratio(r.Float("pitches"), r.Float("IP-adj")) })
	t.Set("IP/App", func(r normalize.Record) any { return ratio(r.Float("IP-adj"), r.Float("App")) })
	t.Set("Pitches/App", func(r normalize.Record) any { return ratio(r.Float("pitches"), r.Float("App")) })
	t.Set("Pitches/PA", func(r normalize.Record) any { return ratio(r.Float("pitches"), r.Float("BF")) })
	t.Set("HR-A/PA", func(r normalize.Record) any { return ratio(r.Float("HR-A"), r.Float("BF")) })
	t.Set("GO/FO", func(r normalize.Record) any { return ratio(r.Float("GO"), r.Float("FO")) })
}

// atBatsAgainst backs at-bats out of batters faced.
func atBatsAgainst(r normalize.Record) float64 {
	return r.Float("BF") - r.Float("BB") - r.Float("SFA") - r.Float("SHA") - r.Float("HB") + r.Float("IBB")
}
