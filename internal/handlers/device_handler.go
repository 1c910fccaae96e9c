package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/wavelane/backend/internal/middleware"
	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
)

// DeviceHandler handles push registration requests
type DeviceHandler struct {
	deviceRepository repositories.DeviceRepository
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(deviceRepo repositories.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{deviceRepository: deviceRepo}
}

// RegisterDeviceRoutes registers push registration routes
func (h *DeviceHandler) RegisterDeviceRoutes(g *echo.Group) {
	g.POST("/push_notifications/device_token", h.RegisterDeviceToken)
	g.POST("/push_notifications/device_token/deregister", h.DeregisterDeviceToken)
	g.POST("/push_notifications/browser/register", h.RegisterBrowser)
}

type deviceTokenRequest struct {
	DeviceType  string `json:"deviceType" validate:"required,oneof=ios android"`
	DeviceToken string `json:"deviceToken" validate:"required"`
}

func (h *DeviceHandler) RegisterDeviceToken(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}

	var req deviceTokenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "deviceType and deviceToken are required")
	}

	token := models.NotificationDeviceToken{
		UserID:      userID,
		DeviceType:  req.DeviceType,
		DeviceToken: req.DeviceToken,
	}
	if err := h.deviceRepository.RegisterDevice(&token); err != nil {
		return serverError(c, "Failed to register device")
	}
	return success(c, nil)
}

type deregisterDeviceRequest struct {
	DeviceToken string `json:"deviceToken" validate:"required"`
}

func (h *DeviceHandler) DeregisterDeviceToken(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}

	var req deregisterDeviceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "deviceToken is required")
	}

	if err := h.deviceRepository.DeregisterDevice(userID, req.DeviceToken); err != nil {
		return serverError(c, "Failed to deregister device")
	}
	return success(c, nil)
}

type browserSubscriptionRequest struct {
	Endpoint  string `json:"endpoint" validate:"required,url"`
	P256dhKey string `json:"p256dhKey" validate:"required"`
	AuthKey   string `json:"authKey" validate:"required"`
}

func (h *DeviceHandler) RegisterBrowser(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}

	var req browserSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "endpoint, p256dhKey and authKey are required")
	}

	sub := models.NotificationBrowserSubscription{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
	}
	if err := h.deviceRepository.RegisterBrowser(&sub); err != nil {
		return serverError(c, "Failed to register browser subscription")
	}
	return success(c, nil)
}
