package aggregate

import (
	"math"
	"testing"
)

func stat(avg, high, low float64, count int) SourceStat {
	return SourceStat{Avg: &avg, High: &high, Low: &low, Count: count}
}

func TestResolveGroups_SumsMembers(t *testing.T) {
	sources := map[string]SourceStat{
		"solar":        stat(2.5, 3.0, 2.0, 2),
		"wind_onshore": stat(8.2, 9.0, 7.5, 2),
	}
	groups := []Group{{Name: "renewable", Members: []string{"solar", "wind_onshore"}}}

	out := ResolveGroups(groups, sources, NullAsZero)
	g := out["renewable"]

	if g.Avg == nil || math.Abs(*g.Avg-10.7) > 1e-9 {
		t.Errorf("Expected group avg 10.7, got %v", g.Avg)
	}
	if *g.High != 12.0 || *g.Low != 9.5 {
		t.Errorf("Expected high=12 low=9.5, got high=%v low=%v", *g.High, *g.Low)
	}
	if g.Count != 4 {
		t.Errorf("Expected count 4, got %d", g.Count)
	}
	if g.MemberCount != 2 || g.MembersWithData != 2 {
		t.Errorf("Expected 2-of-2 members with data, got %d-of-%d", g.MembersWithData, g.MemberCount)
	}
}

func TestResolveGroups_NullMemberContributesZero(t *testing.T) {
	sources := map[string]SourceStat{
		"solar":        stat(2.5, 3.0, 2.0, 2),
		"wind_onshore": {}, // no data this bin
	}
	groups := []Group{{Name: "renewable", Members: []string{"solar", "wind_onshore"}}}

	g := ResolveGroups(groups, sources, NullAsZero)["renewable"]

	if g.Avg == nil || *g.Avg != 2.5 {
		t.Errorf("Expected group avg 2.5 with null member as zero, got %v", g.Avg)
	}
	if g.MembersWithData != 1 || g.MemberCount != 2 {
		t.Errorf("Data-quality indicator must show 1-of-2, got %d-of-%d", g.MembersWithData, g.MemberCount)
	}
}

func TestResolveGroups_AllMembersNullYieldsNull(t *testing.T) {
	sources := map[string]SourceStat{
		"solar":        {},
		"wind_onshore": {},
	}
	groups := []Group{{Name: "renewable", Members: []string{"solar", "wind_onshore"}}}

	g := ResolveGroups(groups, sources, NullAsZero)["renewable"]

	if g.Avg != nil || g.High != nil || g.Low != nil {
		t.Error("Fully-missing group must be null, not zero")
	}
	if g.Count != 0 || g.MembersWithData != 0 {
		t.Errorf("Expected empty group stat, got %+v", g)
	}
}

func TestResolveGroups_RequireAllPolicy(t *testing.T) {
	sources := map[string]SourceStat{
		"solar":        stat(2.5, 3.0, 2.0, 2),
		"wind_onshore": {},
	}
	groups := []Group{{Name: "renewable", Members: []string{"solar", "wind_onshore"}}}

	g := ResolveGroups(groups, sources, RequireAll)["renewable"]

	if g.Avg != nil {
		t.Error("RequireAll must null the group when any member is missing")
	}
	if g.MembersWithData != 1 {
		t.Errorf("Partial presence must still be visible, got %d members with data", g.MembersWithData)
	}
}

func TestResolveGroups_UnknownMemberTreatedAsMissing(t *testing.T) {
	sources := map[string]SourceStat{
		"solar": stat(2.5, 3.0, 2.0, 2),
	}
	groups := []Group{{Name: "mixed", Members: []string{"solar", "nuclear"}}}

	g := ResolveGroups(groups, sources, NullAsZero)["mixed"]

	if g.Avg == nil || *g.Avg != 2.5 {
		t.Errorf("Expected avg 2.5, got %v", g.Avg)
	}
	if g.MembersWithData != 1 || g.MemberCount != 2 {
		t.Errorf("Expected 1-of-2, got %d-of-%d", g.MembersWithData, g.MemberCount)
	}
}

func TestParseNullPolicy(t *testing.T) {
	if ParseNullPolicy("require_all") != RequireAll {
		t.Error("Expected require_all to parse to RequireAll")
	}
	if ParseNullPolicy("") != NullAsZero {
		t.Error("Expected empty policy to default to NullAsZero")
	}
	if ParseNullPolicy("zero") != NullAsZero {
		t.Error("Expected unrecognized spelling to default to NullAsZero")
	}
}
