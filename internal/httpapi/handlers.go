package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
	"github.com/DeividasMat/deal-website-sub000/internal/globaltime"
	"github.com/DeividasMat/deal-website-sub000/internal/ingest"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

type startRunRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("database ping failed")
		return errorWithStatus(c, http.StatusServiceUnavailable, "Database unavailable")
	}
	return success(c, map[string]any{
		"service": "dealflow",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	return success(c, s.coordinator.Status())
}

func (s *Server) handleStartRun(c echo.Context) error {
	var req startRunRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return failValidation(c, map[string]string{"body": "must be a JSON object"})
		}
	}

	target := globaltime.Today()
	if raw := strings.TrimSpace(req.Date); raw != "" {
		parsed, err := parseDay(raw)
		if err != nil {
			return failValidation(c, map[string]string{"date": "must be YYYY-MM-DD"})
		}
		target = parsed
	}

	runUUID, err := s.coordinator.Launch(c.Request().Context(), target)
	if errors.Is(err, ingest.ErrBusy) {
		return failBusy(c, s.coordinator.Status())
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("launch ingestion run failed")
		return internalError(c, "Failed to start ingestion run")
	}
	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"run_uuid":    runUUID,
		"target_date": target.Format(time.DateOnly),
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := defaultRunLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRunLimit {
			return failValidation(c, map[string]string{"limit": "must be between 1 and 200"})
		}
		limit = parsed
	}

	runs, err := s.store.ListIngestRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list ingest runs failed")
		return internalError(c, "Failed to load ingest runs")
	}
	return success(c, map[string]any{"items": runs})
}

func (s *Server) handleStartSweep(c echo.Context) error {
	err := s.coordinator.LaunchSweep(c.Request().Context())
	if errors.Is(err, ingest.ErrBusy) {
		return failBusy(c, s.coordinator.Status())
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("launch sweep failed")
		return internalError(c, "Failed to start sweep")
	}
	return successWithStatus(c, http.StatusAccepted, map[string]any{"started": true})
}

func (s *Server) handleArticles(c echo.Context) error {
	day := globaltime.Today()
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		parsed, err := parseDay(raw)
		if err != nil {
			return failValidation(c, map[string]string{"date": "must be YYYY-MM-DD"})
		}
		day = parsed
	}

	articles, err := s.store.GetByDate(c.Request().Context(), day)
	if err != nil {
		s.logger.Error().Err(err).Time("date", day).Msg("list articles failed")
		return internalError(c, "Failed to load articles")
	}
	if articles == nil {
		articles = []deal.Article{}
	}
	return success(c, map[string]any{
		"date":  day.Format(time.DateOnly),
		"items": articles,
	})
}

func parseDay(raw string) (time.Time, error) {
	parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return deal.DayOf(parsed), nil
}
