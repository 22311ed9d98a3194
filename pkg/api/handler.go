package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gridtrack/gridtrack/pkg/aggregate"
	"github.com/gridtrack/gridtrack/pkg/config"
	"github.com/gridtrack/gridtrack/pkg/httpx"
	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Handler serves the aggregated generation query endpoint.
type Handler struct {
	aggregator *aggregate.Aggregator
	registry   *reading.Registry
	cache      *responseCache
}

// NewHandler creates a query handler. interval and maxGap parameterize the
// query-time interpolation overlay.
func NewHandler(st store.Store, registry *reading.Registry, interval time.Duration, maxGap int) (*Handler, error) {
	cache, err := newResponseCache()
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	return &Handler{
		aggregator: aggregate.New(st, registry, interval, maxGap),
		registry:   registry,
		cache:      cache,
	}, nil
}

// Close releases the response cache.
func (h *Handler) Close() {
	h.cache.close()
}

// aggregatedQuery is the fully parsed and validated form of one request.
// req.Sources is the set the aggregator computes stats for, which may be
// wider than sources: group members are aggregated even when the caller
// did not ask to see them as standalone series.
type aggregatedQuery struct {
	req     aggregate.Request
	sources []string
	groups  []aggregate.Group
	policy  aggregate.NullPolicy
}

// Response envelope for /v1/generation/aggregated.

type AggregatedResponse struct {
	Metadata ResponseMetadata `json:"metadata"`
	Data     []DataPoint      `json:"data"`
}

type ResponseMetadata struct {
	StartTime          time.Time   `json:"start_time"`
	EndTime            time.Time   `json:"end_time"`
	GranularityMinutes int         `json:"granularity_minutes"`
	TimeBins           int         `json:"time_bins"`
	Interpolated       bool        `json:"interpolated"`
	AsPercent          bool        `json:"as_percent"`
	DataQuality        DataQuality `json:"data_quality"`
}

// DataQuality summarizes how complete the returned window is, per source
// and overall. A source-bin cell counts as having data when at least one
// reading landed in it.
type DataQuality struct {
	TotalExpectedBins int                      `json:"total_expected_bins"`
	BinsWithData      int                      `json:"bins_with_data"`
	MissingBins       int                      `json:"missing_bins"`
	PerSource         map[string]SourceQuality `json:"per_source"`
}

type SourceQuality struct {
	ExpectedBins int `json:"expected_bins"`
	BinsWithData int `json:"bins_with_data"`
}

// DataPoint is one time bin: its start timestamp, per-source statistics,
// and the derived group statistics if the request asked for groups.
type DataPoint struct {
	Timestamp time.Time                       `json:"timestamp"`
	Sources   map[string]aggregate.SourceStat `json:"sources"`
	Groups    map[string]aggregate.GroupStat  `json:"groups,omitempty"`
}

// HandleAggregated handles GET /v1/generation/aggregated.
func (h *Handler) HandleAggregated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q, err := h.parseQuery(r.URL.Query())
	if err != nil {
		respondQueryError(w, err)
		return
	}

	key := q.cacheKey()
	if body, ok := h.cache.get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}

	bins, err := h.aggregateWithRetry(r, q.req)
	if err != nil {
		respondQueryError(w, err)
		return
	}

	response := buildResponse(q, bins)
	body, err := json.Marshal(response)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	h.cache.put(key, body)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// aggregateWithRetry retries transient store failures with exponential
// backoff. Validation errors and context cancellation fail immediately.
func (h *Handler) aggregateWithRetry(r *http.Request, req aggregate.Request) ([]aggregate.BinResult, error) {
	ctx := r.Context()

	var lastErr error
	for attempt := 0; attempt < config.StoreRetryAttempts; attempt++ {
		bins, err := h.aggregator.Aggregate(ctx, req)
		if err == nil {
			return bins, nil
		}
		if !errors.Is(err, store.ErrUnavailable) {
			return nil, err
		}
		lastErr = err

		if attempt+1 < config.StoreRetryAttempts {
			wait := config.StoreRetryBaseWait * (1 << attempt)
			log.Printf("Store unavailable (attempt %d/%d), retrying in %v: %v",
				attempt+1, config.StoreRetryAttempts, wait, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return nil, lastErr
}

// parseQuery validates every request parameter up front so the aggregator
// only ever sees well-formed requests.
func (h *Handler) parseQuery(values url.Values) (aggregatedQuery, error) {
	var q aggregatedQuery

	start, err := parseTimeParam(values.Get("start_time"))
	if err != nil {
		return q, fmt.Errorf("%w: start_time: %v", aggregate.ErrInvalidRange, err)
	}
	end, err := parseTimeParam(values.Get("end_time"))
	if err != nil {
		return q, fmt.Errorf("%w: end_time: %v", aggregate.ErrInvalidRange, err)
	}
	if !start.Before(end) {
		return q, fmt.Errorf("%w: start_time must precede end_time", aggregate.ErrInvalidRange)
	}

	granularity := 30 * time.Minute
	if raw := values.Get("granularity_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: granularity_minutes %q", aggregate.ErrInvalidGranularity, raw)
		}
		granularity = time.Duration(minutes) * time.Minute
	}
	if !aggregate.GranularitySupported(granularity) {
		return q, fmt.Errorf("%w: %v (supported: %v minutes)",
			aggregate.ErrInvalidGranularity, granularity, aggregate.SupportedGranularityMinutes)
	}

	// Bound the response size before doing any work.
	expectedBins := countBins(start, end, granularity)
	if expectedBins > config.MaxBinsPerRequest {
		return q, fmt.Errorf("%w: range spans %d bins, maximum is %d; widen the granularity or narrow the range",
			aggregate.ErrInvalidRange, expectedBins, config.MaxBinsPerRequest)
	}

	sources := h.registry.Names()
	if raw := values.Get("sources"); raw != "" {
		sources = splitCSV(raw)
		if len(sources) == 0 {
			return q, fmt.Errorf("%w: sources parameter is empty", ErrInvalidSource)
		}
		if len(sources) > config.MaxSourcesPerQuery {
			return q, fmt.Errorf("%w: %d sources requested, maximum is %d",
				ErrInvalidSource, len(sources), config.MaxSourcesPerQuery)
		}
		for _, name := range sources {
			if !h.registry.Known(name) {
				return q, fmt.Errorf("%w: %q", ErrInvalidSource, name)
			}
		}
	}

	groups, err := h.parseGroups(values.Get("groups"))
	if err != nil {
		return q, err
	}

	q.req = aggregate.Request{
		Start:       start,
		End:         end,
		Granularity: granularity,
		Sources:     unionGroupMembers(sources, groups),
		Interpolate: parseBoolParam(values.Get("interpolate")),
		AsPercent:   parseBoolParam(values.Get("as_percent")),
	}
	q.sources = sources
	q.groups = groups
	q.policy = aggregate.ParseNullPolicy(values.Get("null_policy"))
	return q, nil
}

// parseGroups decodes the groups parameter, a JSON array of
// {"name": ..., "members": [...]} objects. Members must be registered
// sources.
func (h *Handler) parseGroups(raw string) ([]aggregate.Group, error) {
	if raw == "" {
		return nil, nil
	}

	var groups []aggregate.Group
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGroupSpec, err)
	}
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: group with empty name", ErrMalformedGroupSpec)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("%w: duplicate group %q", ErrMalformedGroupSpec, g.Name)
		}
		seen[g.Name] = true
		if len(g.Members) == 0 {
			return nil, fmt.Errorf("%w: group %q has no members", ErrMalformedGroupSpec, g.Name)
		}
		for _, member := range g.Members {
			if !h.registry.Known(member) {
				return nil, fmt.Errorf("%w: group %q member %q", ErrInvalidSource, g.Name, member)
			}
		}
	}
	return groups, nil
}

func buildResponse(q aggregatedQuery, bins []aggregate.BinResult) AggregatedResponse {
	quality := DataQuality{
		PerSource: make(map[string]SourceQuality, len(q.sources)),
	}
	for _, name := range q.sources {
		quality.PerSource[name] = SourceQuality{ExpectedBins: len(bins)}
	}

	data := make([]DataPoint, len(bins))
	for i, bin := range bins {
		// Groups resolve against every aggregated source; the visible
		// sources map stays limited to what the caller asked for.
		visible := bin.Sources
		if len(q.sources) != len(q.req.Sources) {
			visible = make(map[string]aggregate.SourceStat, len(q.sources))
			for _, name := range q.sources {
				visible[name] = bin.Sources[name]
			}
		}

		point := DataPoint{
			Timestamp: bin.Bin.Start,
			Sources:   visible,
		}
		if len(q.groups) > 0 {
			point.Groups = aggregate.ResolveGroups(q.groups, bin.Sources, q.policy)
		}
		data[i] = point

		for _, name := range q.sources {
			if visible[name].Count > 0 {
				sq := quality.PerSource[name]
				sq.BinsWithData++
				quality.PerSource[name] = sq
				quality.BinsWithData++
			}
		}
	}
	quality.TotalExpectedBins = len(bins) * len(q.sources)
	quality.MissingBins = quality.TotalExpectedBins - quality.BinsWithData

	return AggregatedResponse{
		Metadata: ResponseMetadata{
			StartTime:          q.req.Start,
			EndTime:            q.req.End,
			GranularityMinutes: int(q.req.Granularity / time.Minute),
			TimeBins:           len(bins),
			Interpolated:       q.req.Interpolate,
			AsPercent:          q.req.AsPercent,
			DataQuality:        quality,
		},
		Data: data,
	}
}

// cacheKey is a canonical rendering of every parameter that affects the
// response.
func (q aggregatedQuery) cacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%d|%s|%v|%v|%d",
		q.req.Start.UnixNano(), q.req.End.UnixNano(), int64(q.req.Granularity),
		strings.Join(q.req.Sources, ","), q.req.Interpolate, q.req.AsPercent, q.policy)
	for _, g := range q.groups {
		fmt.Fprintf(&b, "|%s=%s", g.Name, strings.Join(g.Members, ","))
	}
	return b.String()
}

// countBins reports how many bins tile [start, end) at the given
// granularity, counting the leading partial bin created by alignment.
func countBins(start, end time.Time, granularity time.Duration) int {
	aligned := start.Truncate(granularity)
	span := end.Sub(aligned)
	n := int(span / granularity)
	if span%granularity != 0 {
		n++
	}
	return n
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("parameter is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be RFC3339: %v", err)
	}
	return t.UTC(), nil
}

func parseBoolParam(raw string) bool {
	return raw == "true" || raw == "1"
}

// unionGroupMembers widens the aggregation set with group members the
// caller did not list in sources, keeping the requested order first.
func unionGroupMembers(sources []string, groups []aggregate.Group) []string {
	if len(groups) == 0 {
		return sources
	}
	seen := make(map[string]bool, len(sources))
	for _, name := range sources {
		seen[name] = true
	}
	out := make([]string, len(sources), len(sources)+4)
	copy(out, sources)
	for _, g := range groups {
		for _, member := range g.Members {
			if !seen[member] {
				seen[member] = true
				out = append(out, member)
			}
		}
	}
	return out
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
