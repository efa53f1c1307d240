package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"codeclash/internal/api/middleware"
	"codeclash/internal/app/service"
	"codeclash/internal/common"
	"codeclash/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type ContestHandler struct {
	contestService     *service.ContestService
	leaderboardService *service.LeaderboardService
	now                func() time.Time
}

func NewContestHandler(cs *service.ContestService, ls *service.LeaderboardService) *ContestHandler {
	return &ContestHandler{contestService: cs, leaderboardService: ls, now: time.Now}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Route("/{contestID}", func(r chi.Router) {
		r.Get("/", h.getContest)
		r.Get("/status", h.getStatus)
		r.Post("/join", h.join)
		r.Get("/questions", h.getQuestions)
		r.Post("/assign-random", h.assignRandom)
		r.Get("/leaderboard", h.getLeaderboard)
		r.Get("/leaderboard/csv", h.exportLeaderboard)
	})
}

func (h *ContestHandler) getContest(w http.ResponseWriter, r *http.Request) {
	view, err := h.contestService.GetContest(r.Context(), chi.URLParam(r, "contestID"), h.now())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view)
}

func (h *ContestHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	contestID := chi.URLParam(r, "contestID")
	status, err := h.contestService.GetStatus(r.Context(), contestID, now)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{
		"contestId":  contestID,
		"status":     status,
		"serverTime": now,
	})
}

func (h *ContestHandler) join(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	view, err := h.contestService.Join(r.Context(), chi.URLParam(r, "contestID"), userID, h.now())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"message": "Joined contest", "contest": view})
}

func (h *ContestHandler) getQuestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	questions, err := h.contestService.GetQuestions(r.Context(), chi.URLParam(r, "contestID"), userID, h.now())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

type assignRandomRequest struct {
	NumQuestions int `json:"numQuestions"`
}

func (h *ContestHandler) assignRandom(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req assignRandomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.NumQuestions < 0 {
		common.RespondWithError(w, http.StatusBadRequest, "numQuestions must not be negative")
		return
	}

	questions, err := h.contestService.Reassign(r.Context(), chi.URLParam(r, "contestID"), userID, req.NumQuestions)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"message": "Questions assigned", "questions": questions})
}

func (h *ContestHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.leaderboardService.Compute(r.Context(), chi.URLParam(r, "contestID"), h.now())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, lb)
}

func (h *ContestHandler) exportLeaderboard(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	contestID := chi.URLParam(r, "contestID")
	view, err := h.contestService.GetContest(r.Context(), contestID, now)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	lb, err := h.leaderboardService.Compute(r.Context(), contestID, now)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	name := slug.Make(view.Name)
	if name == "" {
		name = slug.Make(contestID)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`-leaderboard.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"rank", "userId", "name", "score", "solved"})
	for i, e := range lb.Entries {
		_ = cw.Write([]string{
			strconv.Itoa(i + 1), e.UserID, e.Name, strconv.Itoa(e.Score), strconv.Itoa(e.Solved),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.Warn(r.Context(), "leaderboard csv write failed", zap.String("contest_id", contestID), zap.Error(err))
	}
}
