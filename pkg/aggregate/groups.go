package aggregate

// Group is a named, query-time set of member sources whose bin statistics
// are summed. Groups are supplied by the caller per query and never
// persisted.
type Group struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// NullPolicy decides how a member with no data in a bin affects its
// group's statistics.
type NullPolicy int

const (
	// NullAsZero lets members with data carry the group: a null member
	// contributes 0 to the sums. The default.
	NullAsZero NullPolicy = iota

	// RequireAll nulls the group stat for any bin where at least one
	// member has no data.
	RequireAll
)

// ParseNullPolicy maps the wire spelling of a policy to its value.
// Unrecognized spellings fall back to NullAsZero.
func ParseNullPolicy(s string) NullPolicy {
	if s == "require_all" {
		return RequireAll
	}
	return NullAsZero
}

// GroupStat is the derived statistic for one group in one bin. Avg, high
// and low are sums of the member stats. MembersWithData against
// MemberCount is the data-quality indicator distinguishing a fully-missing
// group from a partially-missing one.
type GroupStat struct {
	Avg             *float64 `json:"avg"`
	High            *float64 `json:"high"`
	Low             *float64 `json:"low"`
	Count           int      `json:"count"`
	MemberCount     int      `json:"member_count"`
	MembersWithData int      `json:"members_with_data"`
}

// ResolveGroups derives group statistics from one bin's per-source stats.
// A group whose every member is null yields a null stat, never a zero
// passed off as measured data.
func ResolveGroups(groups []Group, sources map[string]SourceStat, policy NullPolicy) map[string]GroupStat {
	out := make(map[string]GroupStat, len(groups))
	for _, g := range groups {
		out[g.Name] = resolveGroup(g, sources, policy)
	}
	return out
}

func resolveGroup(g Group, sources map[string]SourceStat, policy NullPolicy) GroupStat {
	stat := GroupStat{MemberCount: len(g.Members)}

	var avg, high, low float64
	for _, member := range g.Members {
		ss, ok := sources[member]
		if !ok || ss.Count == 0 {
			continue
		}
		stat.MembersWithData++
		stat.Count += ss.Count
		avg += *ss.Avg
		high += *ss.High
		low += *ss.Low
	}

	if stat.MembersWithData == 0 {
		stat.Count = 0
		return stat
	}
	if policy == RequireAll && stat.MembersWithData < stat.MemberCount {
		stat.Count = 0
		return stat
	}

	stat.Avg, stat.High, stat.Low = &avg, &high, &low
	return stat
}
