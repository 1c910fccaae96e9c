package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/wavelane/backend/internal/middleware"
	"github.com/wavelane/backend/internal/repositories"
)

// SubscriptionHandler handles upload subscription requests
type SubscriptionHandler struct {
	subscriptionRepository repositories.SubscriptionRepository
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subRepo repositories.SubscriptionRepository) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionRepository: subRepo}
}

// RegisterSubscriptionRoutes registers subscription routes
func (h *SubscriptionHandler) RegisterSubscriptionRoutes(g *echo.Group) {
	g.GET("/notifications/subscription", h.GetSubscription)
	g.POST("/notifications/subscription", h.UpdateSubscription)
}

func (h *SubscriptionHandler) GetSubscription(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}
	target, err := strconv.ParseInt(c.QueryParam("userId"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid userId parameter")
	}
	subscribed, err := h.subscriptionRepository.IsSubscribed(userID, target)
	if err != nil {
		return serverError(c, "Failed to fetch subscription")
	}
	return success(c, map[string]interface{}{"isSubscribed": subscribed})
}

type updateSubscriptionRequest struct {
	UserID       int64 `json:"userId" validate:"required"`
	IsSubscribed bool  `json:"isSubscribed"`
}

func (h *SubscriptionHandler) UpdateSubscription(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}

	var req updateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "userId is required")
	}

	if req.IsSubscribed {
		if err := h.subscriptionRepository.Subscribe(userID, req.UserID); err != nil {
			return badRequest(c, err.Error())
		}
	} else {
		if err := h.subscriptionRepository.Unsubscribe(userID, req.UserID); err != nil {
			return serverError(c, "Failed to unsubscribe")
		}
	}
	return success(c, nil)
}
