package memory

import (
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/league"
	"github.com/dzoothis/oddsfeed/internal/domain/sport"
	"github.com/dzoothis/oddsfeed/internal/domain/team"
)

const (
	SportIDFootball   = int64(1)
	SportIDBasketball = int64(2)

	LeagueIDPremierLeague = "eng-premier-league"
	LeagueIDLiga1         = "idn-liga-1"
	LeagueIDNBA           = "usa-nba"
)

func SeedSports() []sport.Sport {
	return []sport.Sport{
		{ID: SportIDFootball, Name: "Football", TypicalDuration: 2 * time.Hour},
		{ID: SportIDBasketball, Name: "Basketball", TypicalDuration: 3 * time.Hour},
	}
}

func SeedLeagues() []league.League {
	return []league.League{
		{ID: LeagueIDPremierLeague, SportID: SportIDFootball, Name: "Premier League", Coverage: league.CoverageMajor},
		{ID: LeagueIDLiga1, SportID: SportIDFootball, Name: "Liga 1 Indonesia", Coverage: league.CoverageRegional},
		{ID: LeagueIDNBA, SportID: SportIDBasketball, Name: "NBA", Coverage: league.CoverageMajor},
	}
}

func SeedTeams() []team.Team {
	return []team.Team{
		{ID: "eng-manutd", SportID: SportIDFootball, LeagueID: LeagueIDPremierLeague, Name: "Manchester United", Aliases: []string{"Man Utd"}, IsActive: true},
		{ID: "eng-mancity", SportID: SportIDFootball, LeagueID: LeagueIDPremierLeague, Name: "Manchester City", Aliases: []string{"Man City"}, IsActive: true},
		{ID: "eng-liv", SportID: SportIDFootball, LeagueID: LeagueIDPremierLeague, Name: "Liverpool", IsActive: true},
		{ID: "eng-ars", SportID: SportIDFootball, LeagueID: LeagueIDPremierLeague, Name: "Arsenal", IsActive: true},
		{ID: "eng-che", SportID: SportIDFootball, LeagueID: LeagueIDPremierLeague, Name: "Chelsea", IsActive: true},
		{ID: "idn-persija", SportID: SportIDFootball, LeagueID: LeagueIDLiga1, Name: "Persija Jakarta", IsActive: true},
		{ID: "idn-persib", SportID: SportIDFootball, LeagueID: LeagueIDLiga1, Name: "Persib Bandung", IsActive: true},
		{ID: "usa-lal", SportID: SportIDBasketball, LeagueID: LeagueIDNBA, Name: "Los Angeles Lakers", Aliases: []string{"LA Lakers"}, IsActive: true},
		{ID: "usa-bos", SportID: SportIDBasketball, LeagueID: LeagueIDNBA, Name: "Boston Celtics", IsActive: true},
	}
}

func SeedMappings() []team.ProviderMapping {
	return []team.ProviderMapping{
		{TeamID: "eng-liv", Provider: "oddsprime", ProviderTeamID: "op-204", ProviderName: "Liverpool FC", Confidence: 1, IsPrimary: true},
		{TeamID: "eng-ars", Provider: "betstream", ProviderName: "Arsenal FC", Confidence: 0.93},
	}
}
