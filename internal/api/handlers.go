package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/talentwire/jobfetch/internal/scrape"
)

type scrapeRequest struct {
	URL         string `json:"url"`
	BypassCache bool   `json:"bypass_cache"`
	TTLSeconds  int    `json:"ttl_override_seconds"`
}

type batchRequest struct {
	URLs        []string `json:"urls"`
	BypassCache bool     `json:"bypass_cache"`
	TTLSeconds  int      `json:"ttl_override_seconds"`
}

// itemResponse flattens an ItemResult for the wire, with durations in
// explicit units.
type itemResponse struct {
	Target          string           `json:"target"`
	Platform        scrape.Platform  `json:"platform"`
	Success         bool             `json:"success"`
	Posting         *scrape.Posting  `json:"posting,omitempty"`
	ErrorKind       scrape.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	Cached          bool             `json:"cached"`
	CacheAgeSeconds float64          `json:"cache_age_seconds,omitempty"`
	Attempts        int              `json:"attempts"`
	DurationMs      int64            `json:"duration_ms"`
}

func toItemResponse(r scrape.ItemResult) itemResponse {
	return itemResponse{
		Target:          r.Target,
		Platform:        r.Platform,
		Success:         r.Success,
		Posting:         r.Posting,
		ErrorKind:       r.ErrorKind,
		ErrorMessage:    r.ErrorMessage,
		Cached:          r.Cached,
		CacheAgeSeconds: r.CacheAge.Seconds(),
		Attempts:        r.Attempts,
		DurationMs:      r.Duration.Milliseconds(),
	}
}

func batchOptions(bypass bool, ttlSeconds int) scrape.BatchOptions {
	opts := scrape.BatchOptions{BypassCache: bypass}
	if ttlSeconds > 0 {
		opts.TTLOverride = time.Duration(ttlSeconds) * time.Second
	}
	return opts
}

func (s *Server) scrapeOne(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	results, err := s.executor.RunBatch(r.Context(), []string{req.URL}, batchOptions(req.BypassCache, req.TTLSeconds))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	item := toItemResponse(results[0])
	status := http.StatusOK
	if !item.Success {
		status = statusForKind(results[0].ErrorKind)
	}
	writeJSON(w, status, item)
}

func (s *Server) scrapeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls are required")
		return
	}

	results, err := s.executor.RunBatch(r.Context(), req.URLs, batchOptions(req.BypassCache, req.TTLSeconds))
	if err != nil {
		// RunBatch errors only on invalid input such as oversized batches.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]itemResponse, len(results))
	succeeded := 0
	for i, res := range results {
		items[i] = toItemResponse(res)
		if res.Success {
			succeeded++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":   items,
		"total":     len(items),
		"succeeded": succeeded,
		"failed":    len(items) - succeeded,
	})
}

// statusForKind maps per-item failure kinds to HTTP statuses for the
// single-URL endpoint, where the item outcome is the response.
func statusForKind(kind scrape.ErrorKind) int {
	switch kind {
	case scrape.KindResourceNotFound:
		return http.StatusNotFound
	case scrape.KindRateLimiterExhausted, scrape.KindRateLimitedByTarget:
		return http.StatusTooManyRequests
	case scrape.KindExtractionInsufficient:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

type cacheItemView struct {
	Key              string  `json:"key"`
	AgeSeconds       float64 `json:"age_seconds"`
	ExpiresInSeconds float64 `json:"expires_in_seconds"`
	HitCount         int64   `json:"hit_count"`
}

func (s *Server) cacheItems(w http.ResponseWriter, _ *http.Request) {
	keys := s.cache.Keys()
	items := make([]cacheItemView, len(keys))
	for i, k := range keys {
		items[i] = cacheItemView{
			Key:              k.Key,
			AgeSeconds:       k.Age.Seconds(),
			ExpiresInSeconds: k.ExpiresIn.Seconds(),
			HitCount:         k.HitCount,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) cacheClear(w http.ResponseWriter, _ *http.Request) {
	s.cache.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) cacheInvalidate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	key, err := s.executor.CacheKey(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.cache.Invalidate(key) {
		writeError(w, http.StatusNotFound, "no cache entry for url")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

type recordView struct {
	ID         string           `json:"id,omitempty"`
	Target     string           `json:"target"`
	Platform   scrape.Platform  `json:"platform"`
	Success    bool             `json:"success"`
	ErrorKind  scrape.ErrorKind `json:"error_kind,omitempty"`
	Cached     bool             `json:"cached"`
	Attempts   int              `json:"attempts"`
	DurationMs int64            `json:"duration_ms"`
	FetchedAt  time.Time        `json:"fetched_at"`
}

func (s *Server) recentRecords(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusNotFound, "record store not configured")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	records, err := s.records.RecentRecords(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]recordView, len(records))
	for i, rec := range records {
		views[i] = recordView{
			ID:         rec.ID,
			Target:     rec.Target,
			Platform:   rec.Platform,
			Success:    rec.Success,
			ErrorKind:  rec.ErrorKind,
			Cached:     rec.Cached,
			Attempts:   rec.Attempts,
			DurationMs: rec.Duration.Milliseconds(),
			FetchedAt:  rec.FetchedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": views, "count": len(views)})
}

type sessionStatsView struct {
	Platform       scrape.Platform `json:"platform"`
	State          string          `json:"state"`
	RequestCount   int64           `json:"request_count"`
	SessionAgeSecs float64         `json:"session_age_seconds"`
	IdleForSecs    float64         `json:"idle_for_seconds"`
}

func (s *Server) sessionStats(w http.ResponseWriter, _ *http.Request) {
	views := make([]sessionStatsView, 0, len(s.sessions))
	for _, sess := range s.sessions {
		st := sess.Stats()
		views = append(views, sessionStatsView{
			Platform:       st.Platform,
			State:          st.State,
			RequestCount:   st.RequestCount,
			SessionAgeSecs: st.SessionAge.Seconds(),
			IdleForSecs:    st.IdleFor.Seconds(),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Platform < views[j].Platform })
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

type sessionRefreshRequest struct {
	Platform string `json:"platform"`
}

func (s *Server) sessionRefresh(w http.ResponseWriter, r *http.Request) {
	var req sessionRefreshRequest
	// Body is optional; an empty body refreshes every session.
	_ = json.NewDecoder(r.Body).Decode(&req)

	refreshed := make([]string, 0, len(s.sessions))
	if req.Platform != "" {
		sess, ok := s.sessions[scrape.Platform(req.Platform)]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown platform")
			return
		}
		if err := sess.Refresh(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		refreshed = append(refreshed, req.Platform)
	} else {
		for plat, sess := range s.sessions {
			if err := sess.Refresh(r.Context()); err != nil {
				writeError(w, http.StatusBadGateway, err.Error())
				return
			}
			refreshed = append(refreshed, string(plat))
		}
		sort.Strings(refreshed)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed", "platforms": refreshed})
}
