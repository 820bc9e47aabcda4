package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/llm"
)

var errRateLimited = errors.New("rate limit exceeded")

type retrieveRequest struct {
	ViewerID      string             `json:"viewer_id"`
	TargetID      string             `json:"target_id"`
	Query         string             `json:"query"`
	Similarity    map[string]float64 `json:"similarity"`
	MinConfidence *float64           `json:"min_confidence"`
	Now           *time.Time         `json:"now"`
	Limit         *int               `json:"limit"`
}

type retrieveResponse struct {
	*gatekeeper.Result
	Summary gatekeeper.Summary `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// query applies server defaults and the authenticated viewer.
func (s *Server) query(r *http.Request, req retrieveRequest) (gatekeeper.Query, error) {
	viewer, err := viewerFor(r, req.ViewerID)
	if err != nil {
		return gatekeeper.Query{}, err
	}
	q := gatekeeper.Query{
		ViewerID:      viewer,
		TargetID:      req.TargetID,
		Text:          req.Query,
		Similarity:    req.Similarity,
		MinConfidence: s.opts.MinConfidence,
		Now:           s.opts.Now().UTC(),
		Limit:         s.opts.TopK,
	}
	if req.MinConfidence != nil {
		q.MinConfidence = *req.MinConfidence
	}
	if req.Now != nil {
		q.Now = *req.Now
	}
	if req.Limit != nil {
		q.Limit = *req.Limit
	}
	if s.limiter != nil && !s.limiter.Allow(q.ViewerID) {
		return q, errRateLimited
	}
	return q, nil
}

func (s *Server) run(r *http.Request, q gatekeeper.Query) (*gatekeeper.Result, error) {
	start := time.Now()
	res, err := s.pipeline.Run(r.Context(), s.backend, q)
	s.metrics.observe(res, err, time.Since(start))
	if err != nil {
		s.log.Info("retrieve failed", "viewer", q.ViewerID, "target", q.TargetID, "error", err)
	}
	return res, err
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid json")
		return
	}
	q, err := s.query(r, req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	res, err := s.run(r, q)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retrieveResponse{
		Result:  res,
		Summary: gatekeeper.Summarize(res.Claims, s.opts.MinTrusted),
	})
}

type batchItem struct {
	*retrieveResponse
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleRetrieveBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queries []retrieveRequest `json:"queries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid json")
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "queries required")
		return
	}

	items := make([]batchItem, len(req.Queries))
	var queries []gatekeeper.Query
	var index []int
	for i, rq := range req.Queries {
		q, err := s.query(r, rq)
		if err != nil {
			items[i] = failedItem(err)
			continue
		}
		queries = append(queries, q)
		index = append(index, i)
	}

	start := time.Now()
	results, err := s.pipeline.RetrieveBatch(r.Context(), s.backend, queries, s.opts.BatchWorkers)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	elapsed := time.Since(start)
	for j, it := range results {
		s.metrics.observe(it.Result, it.Err, elapsed)
		if it.Err != nil {
			items[index[j]] = failedItem(it.Err)
			continue
		}
		items[index[j]] = batchItem{retrieveResponse: &retrieveResponse{
			Result:  it.Result,
			Summary: gatekeeper.Summarize(it.Result.Claims, s.opts.MinTrusted),
		}}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

func failedItem(err error) batchItem {
	code, _ := classify(err)
	return batchItem{Error: err.Error(), Code: code}
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid json")
		return
	}
	q, err := s.query(r, req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	res, err := s.run(r, q)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	summary := gatekeeper.Summarize(res.Claims, s.opts.MinTrusted)
	writeJSON(w, http.StatusOK, map[string]any{
		"context": buildContext(q.Text, res, summary, s.opts.Caveats),
		"claims":  len(res.Claims),
		"summary": summary,
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if s.opts.LLM == nil {
		writeError(w, http.StatusNotImplemented, "NOT_CONFIGURED", "answer generation is not configured")
		return
	}
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid json")
		return
	}
	q, err := s.query(r, req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	res, err := s.run(r, q)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	summary := gatekeeper.Summarize(res.Claims, s.opts.MinTrusted)
	contextBlock := buildContext(q.Text, res, summary, s.opts.Caveats)

	resp, err := s.opts.LLM.Complete(r.Context(), llm.AnswerPrompt(q.Text, contextBlock, s.opts.Caveats))
	if err != nil {
		s.log.Error("answer generation failed", "viewer", q.ViewerID, "target", q.TargetID, "error", err)
		writeError(w, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":   resp.Content,
		"provider": resp.Provider,
		"tokens":   resp.TokensUsed,
		"claims":   len(res.Claims),
		"summary":  summary,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.backend.ListUsers(r.Context())
	if err != nil {
		s.writeErr(w, fmt.Errorf("list users: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// classify maps an error to its API code and HTTP status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, errRateLimited):
		return "RATE_LIMITED", http.StatusTooManyRequests
	case errors.Is(err, errForbiddenViewer):
		return "FORBIDDEN", http.StatusForbidden
	}
	code := gatekeeper.ErrorCode(err)
	switch code {
	case "INVALID_REQUEST":
		return code, http.StatusBadRequest
	case "INVALID_RELATIONSHIP_INPUT", "MISSING_SIMILARITY_SCORE", "INVALID_CLAIM_DATA":
		return code, http.StatusUnprocessableEntity
	case "NOT_FOUND":
		return code, http.StatusNotFound
	case "CANCELED":
		return code, http.StatusServiceUnavailable
	}
	return code, http.StatusInternalServerError
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	code, status := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
