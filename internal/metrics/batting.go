package metrics

import (
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reference"
)

// BattingColumns are appended by AddBatting, in order.
var BattingColumns = []string{
	"PA", "1B", "OBP", "BA", "SLG", "OPS", "ISO", "HR/PA", "K/PA", "BB/PA", "K/BB", "BABIP",
	"wOBA", "wRAA", "wRC",
}

// AddBatting appends batting rates to t and keeps only rows with at least
// one plate appearance. Run values need weights; with nil weights (career
// lines spanning seasons) wOBA, wRAA and wRC are zero.
func AddBatting(t *normalize.Table, w *reference.LinearWeights) {
	t.Set("PA", func(r normalize.Record) any {
		return PlateAppearances(r.Int("AB"), r.Int("BB"), r.Int("SF"), r.Int("SH"), r.Int("HBP"), r.Int("IBB"))
	})
	t.Filter(func(r normalize.Record) bool { return r.Int("PA") > 0 })

	t.Set("1B", func(r normalize.Record) any {
		return Singles(r.Int("H"), r.Int("2B"), r.Int("3B"), r.Int("HR"))
	})
	t.Set("OBP", func(r normalize.Record) any {
		return ratio(r.Float("H")+r.Float("BB")+r.Float("IBB")+r.Float("HBP"), r.Float("PA"))
	})
	t.Set("BA", func(r normalize.Record) any { return ratio(r.Float("H"), r.Float("AB")) })
	t.Set("SLG", func(r normalize.Record) any {
		return ratio(r.Float("1B")+2*r.Float("2B")+3*r.Float("3B")+4*r.Float("HR"), r.Float("AB"))
	})
	t.Set("OPS", func(r normalize.Record) any { return round(r.Float("OBP") + r.Float("SLG")) })
	t.Set("ISO", func(r normalize.Record) any { return round(r.Float("SLG") - r.Float("BA")) })
	t.Set("HR/PA", func(r normalize.Record) any { return ratio(r.Float("HR"), r.Float("PA")) })
	t.Set("K/PA", func(r normalize.Record) any { return ratio(r.Float("K"), r.Float("PA")) })
	t.Set("BB/PA", func(r normalize.Record) any { return ratio(r.Float("BB"), r.Float("PA")) })
	t.Set("K/BB", func(r normalize.Record) any { return ratio(r.Float("K"), r.Float("BB")) })
	t.Set("BABIP", func(r normalize.Record) any {
		return ratio(r.Float("H")-r.Float("HR"), r.Float("AB")-r.Float("K")-r.Float("HR")+r.Float("SF"))
	})

	t.Set("wOBA", func(r normalize.Record) any {
		if w == nil {
			return 0.0
		}
		return WOBA(*w, r.Float("BB"), r.Float("HBP"), r.Float("1B"), r.Float("2B"), r.Float("3B"), r.Float("HR"), r.Float("PA"))
	})
	t.Set("wRAA", func(r normalize.Record) any {
		if w == nil {
			return 0.0
		}
		return WRAA(*w, r.Float("wOBA"), r.Float("PA"))
	})
	t.Set("wRC", func(r normalize.Record) any {
		if w == nil {
			return 0.0
		}
		return WRC(*w, r.Float("wOBA"), r.Float("PA"))
	})
}
