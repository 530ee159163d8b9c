package boydsworld

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/collegebaseball/internal/reference"
)

func TestScoresURL(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{
			"single season",
			Query{Team: "Cornell", FirstYear: 2022},
			DefaultURL + "?firstyear=2022&format=HTML&lastyear=2022&submit=Fetch&team1=Cornell&team2=all",
		},
		{
			"range and opponent",
			Query{Team: "Miami, Florida", FirstYear: 2019, LastYear: 2021, Opponent: "Florida"},
			DefaultURL + "?firstyear=2019&format=HTML&lastyear=2021&submit=Fetch&team1=Miami%2C+Florida&team2=Florida",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoresURL("", tt.q))
		})
	}
}

func TestParse(t *testing.T) {
	f, err := os.Open("testdata/scores.html")
	require.NoError(t, err)
	defer f.Close()

	games, err := Parse(f, "cornell")
	require.NoError(t, err)
	require.Len(t, games, 4, "ties and other teams' games are skipped")

	want := []Game{
		{Date: day(2022, 2, 18), Opponent: "Coastal Carolina", RunsScored: 5, RunsAllowed: 3, RunDifference: 2, Field: "@ Conway, SC"},
		{Date: day(2022, 2, 19), Opponent: "Coastal Carolina", RunsScored: 2, RunsAllowed: 9, RunDifference: -7, Field: "@ Conway, SC"},
		{Date: day(2022, 2, 20), Opponent: "Coastal Carolina", RunsScored: 5, RunsAllowed: 6, RunDifference: -1, Field: "@ Conway, SC"},
		{Date: day(2022, 3, 4), Opponent: "Harvard", RunsScored: 7, RunsAllowed: 3, RunDifference: 4, Field: "@ Cambridge, MA"},
	}
	assert.Equal(t, want, games)
}

func TestParseNoGames(t *testing.T) {
	f, err := os.Open("testdata/no_games.html")
	require.NoError(t, err)
	defer f.Close()

	games, err := Parse(f, "nobody")
	require.NoError(t, err)
	assert.Empty(t, games)
}

type stubFetcher struct {
	url  string
	body []byte
}

func (s *stubFetcher) Fetch(_ context.Context, pageURL string) ([]byte, error) {
	s.url = pageURL
	return s.body, nil
}

func TestClientGamesUsesAlternateName(t *testing.T) {
	body, err := os.ReadFile("testdata/scores.html")
	require.NoError(t, err)
	f := &stubFetcher{body: body}
	bundle := reference.New(reference.Tables{Schools: []reference.School{
		{SchoolID: 167, NCAAName: "Cornell University", BDName: "Cornell", Division: 1},
	}})

	games, err := NewClient(f, bundle, "", nil).Games(context.Background(), reference.ByID(167), 2022, 2022)
	require.NoError(t, err)
	assert.Len(t, games, 4)
	assert.Contains(t, f.url, "team1=Cornell&")

	tbl := Table(games)
	assert.Equal(t, TableColumns, tbl.Columns)
	assert.Equal(t, "02/18/2022", tbl.Records[0]["date"])
	assert.Equal(t, int64(2022), tbl.Records[0]["season"])
	assert.Equal(t, int64(-7), tbl.Records[1]["run_difference"])
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
