package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/wavelane/backend/internal/middleware"
	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
)

// SettingsHandler handles notification settings requests
type SettingsHandler struct {
	settingsRepository repositories.SettingsRepository
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settingsRepo repositories.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settingsRepository: settingsRepo}
}

// RegisterSettingsRoutes registers settings routes
func (h *SettingsHandler) RegisterSettingsRoutes(g *echo.Group) {
	g.GET("/notifications/settings", h.GetSettings)
	g.POST("/notifications/settings", h.UpdateSettings)
}

func (h *SettingsHandler) GetSettings(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}
	settings, err := h.settingsRepository.GetByUserID(userID)
	if err != nil {
		return serverError(c, "Failed to fetch settings")
	}
	return success(c, map[string]interface{}{"settings": settings})
}

// UpdateSettings applies a partial settings update; omitted fields keep their
// stored value.
func (h *SettingsHandler) UpdateSettings(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}

	var req models.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "Invalid emailFrequency value")
	}

	settings, err := h.settingsRepository.GetByUserID(userID)
	if err != nil {
		return serverError(c, "Failed to fetch settings")
	}
	applySettingsUpdate(settings, &req)

	if err := h.settingsRepository.Upsert(settings); err != nil {
		return serverError(c, "Failed to update settings")
	}
	return success(c, map[string]interface{}{"settings": settings})
}

func applySettingsUpdate(s *models.UserNotificationSettings, req *models.UpdateSettingsRequest) {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&s.MobileFollowers, req.MobileFollowers)
	setBool(&s.MobileReposts, req.MobileReposts)
	setBool(&s.MobileFavorites, req.MobileFavorites)
	setBool(&s.MobileRemixes, req.MobileRemixes)
	setBool(&s.MobileMilestones, req.MobileMilestones)
	setBool(&s.BrowserFollowers, req.BrowserFollowers)
	setBool(&s.BrowserReposts, req.BrowserReposts)
	setBool(&s.BrowserFavorites, req.BrowserFavorites)
	setBool(&s.BrowserRemixes, req.BrowserRemixes)
	setBool(&s.BrowserMilestones, req.BrowserMilestones)
	if req.EmailFrequency != nil {
		s.EmailFrequency = *req.EmailFrequency
	}
}
