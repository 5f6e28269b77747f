package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type recommendationJSON struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Distance float64 `json:"distance"`
}

type recommendResponse struct {
	Query           string               `json:"query"`
	MatchedTitle    string               `json:"matched_title"`
	Method          string               `json:"method"`
	Score           float64              `json:"score"`
	Recommendations []recommendationJSON `json:"recommendations"`
}

type componentJSON struct {
	Healthy     bool       `json:"healthy"`
	Degraded    bool       `json:"degraded,omitempty"`
	Message     string     `json:"message,omitempty"`
	LastCheck   time.Time  `json:"last_check"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

type healthResponse struct {
	Status     string                   `json:"status"`
	Components map[string]componentJSON `json:"components"`
}

type statsResponse struct {
	Entries       int       `json:"entries"`
	Languages     int       `json:"languages"`
	Dimension     int       `json:"dimension"`
	K             int       `json:"k"`
	Limit         int       `json:"limit"`
	Algorithm     string    `json:"algorithm"`
	Source        string    `json:"source"`
	BuiltAt       time.Time `json:"built_at"`
	BuildDuration string    `json:"build_duration"`
}

var errorMessages = map[int]string{
	http.StatusNotFound:            "No similar book title found in our database",
	http.StatusServiceUnavailable:  "Book database not loaded",
	http.StatusInternalServerError: "Error finding the book in our database",
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "query parameter q is required")
		return
	}

	res, err := s.engine.Recommend(query)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, errorMessages[status])
		return
	}

	recs := make([]recommendationJSON, len(res.Recommendations))
	for i, rec := range res.Recommendations {
		recs[i] = recommendationJSON{ID: rec.ID, Title: rec.Title, Distance: rec.Distance}
	}
	writeJSON(w, http.StatusOK, recommendResponse{
		Query:           query,
		MatchedTitle:    res.MatchedTitle(),
		Method:          string(res.Match.Method),
		Score:           res.Match.Score,
		Recommendations: recs,
	})
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxSuggestLimit {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer between 1 and "+strconv.Itoa(MaxSuggestLimit))
			return
		}
		limit = n
	}

	titles, err := s.engine.Suggest(q.Get("q"), limit)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, errorMessages[status])
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Components: make(map[string]componentJSON),
	}
	for name, st := range s.health.GetAllStatuses() {
		c := componentJSON{
			Healthy:   st.Healthy,
			Degraded:  st.Degraded,
			Message:   st.Message,
			LastCheck: st.LastCheck,
		}
		if !st.LastSuccess.IsZero() {
			ls := st.LastSuccess
			c.LastSuccess = &ls
		}
		resp.Components[name] = c
	}

	status := http.StatusOK
	switch {
	case !s.health.IsOverallHealthy() || !s.engine.Ready():
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	case s.health.IsDegraded():
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats()
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, errorMessages[status])
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Entries:       st.Entries,
		Languages:     st.Languages,
		Dimension:     st.Dimension,
		K:             st.K,
		Limit:         st.Limit,
		Algorithm:     string(st.Algorithm),
		Source:        st.Source,
		BuiltAt:       st.BuiltAt,
		BuildDuration: st.BuildDuration.String(),
	})
}
