package decode

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RosterSelector is the first table on a roster page.
var RosterSelector = Selector{Index: 0, Rows: "tbody tr"}

// CareerSelector is the career table on the player index page. Positional.
var CareerSelector = Selector{Index: 2, Rows: "tr"}

// CareerSkipLabels are summary rows on the career table.
var CareerSkipLabels = []string{"Career", "Totals"}

// DecodeRoster decodes a roster table into rows laid out as columns. The
// second cell holds the player link and becomes two cells: the
// stats_player_seq and the name. Players without a link have not appeared
// in a game and are rejected with RejectNoID.
func DecodeRoster(markup io.Reader, columns []string, sel Selector) (*Result, error) {
	doc, err := Parse(markup)
	if err != nil {
		return nil, err
	}
	table, err := FindTable(doc, sel)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	rows(table, sel).Each(func(i int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}
		var cells RawRow
		var name string
		noID := false
		tds.Each(func(j int, td *goquery.Selection) {
			if j != 1 {
				cells = append(cells, cellText(td))
				return
			}
			a := td.Find("a[href]").First()
			if a.Length() == 0 {
				noID = true
				name = cellText(td)
				cells = append(cells, "", name)
				return
			}
			href, _ := a.Attr("href")
			_, id := ClassifyLink(href)
			if id == "" {
				noID = true
			}
			name = strings.TrimSpace(a.Text())
			cells = append(cells, id, name)
		})
		switch {
		case noID:
			res.Rejected = append(res.Rejected, Rejection{Row: i, Reason: RejectNoID, Cells: len(cells), Detail: name})
		case len(cells) != len(columns):
			res.Rejected = append(res.Rejected, Rejection{Row: i, Reason: RejectCellCount, Cells: len(cells)})
		default:
			res.Rows = append(res.Rows, cells)
		}
	})
	return res, nil
}
