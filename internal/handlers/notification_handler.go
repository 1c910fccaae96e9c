package handlers

import (
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/wavelane/backend/internal/middleware"
	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/notifications"
	"github.com/wavelane/backend/internal/repositories"
)

const maxNotificationLimit = 100

// NotificationHandler handles the notification feed HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	announcementRepository repositories.AnnouncementRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, annRepo repositories.AnnouncementRepository) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		announcementRepository: annRepo,
	}
}

// RegisterNotificationRoutes registers notification feed routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.POST("/notifications", h.UpdateNotification)
	g.POST("/notifications/all", h.UpdateAllNotifications)
}

// feedEntry is one item of the merged notification feed.
type feedEntry struct {
	ID               uint                        `json:"id,omitempty"`
	Type             string                      `json:"type"`
	EntityID         *int64                      `json:"entityId,omitempty"`
	Timestamp        time.Time                   `json:"timestamp"`
	IsViewed         bool                        `json:"isViewed"`
	IsRead           bool                        `json:"isRead"`
	Actions          []models.NotificationAction `json:"actions,omitempty"`
	Title            string                      `json:"title,omitempty"`
	ShortDescription string                      `json:"shortDescription,omitempty"`
}

// GetNotifications lists the user's notifications newest first, with platform
// announcements merged in. Remix and trending entries are filtered out unless
// asked for.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}

	limit := maxNotificationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "Invalid limit parameter")
		}
		if parsed < limit {
			limit = parsed
		}
	}

	before := time.Now()
	if raw := c.QueryParam("timeOffset"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "Invalid timeOffset parameter")
		}
		before = parsed
	}

	var excludeTypes []string
	if c.QueryParam("withRemix") != "true" {
		excludeTypes = append(excludeTypes,
			string(notifications.TypeRemixCreate), string(notifications.TypeRemixCosign))
	}
	if c.QueryParam("withTrendingTrack") != "true" {
		excludeTypes = append(excludeTypes, string(notifications.TypeTrendingTrack))
	}

	rows, err := h.notificationRepository.ListForUser(userID, limit, before, excludeTypes)
	if err != nil {
		return serverError(c, "Failed to fetch notifications")
	}

	entries := make([]feedEntry, 0, len(rows))
	for _, n := range rows {
		entries = append(entries, feedEntry{
			ID:        n.ID,
			Type:      n.Type,
			EntityID:  n.EntityID,
			Timestamp: n.Timestamp,
			IsViewed:  n.IsViewed,
			IsRead:    n.IsRead,
			Actions:   n.Actions,
		})
	}

	anns, err := h.announcementRepository.GetAll(c.Request().Context())
	if err != nil {
		return serverError(c, "Failed to fetch announcements")
	}
	for _, a := range anns {
		if !a.DatePublished.Before(before) {
			continue
		}
		entityID := a.EntityID
		entries = append(entries, feedEntry{
			Type:             string(notifications.TypeAnnouncement),
			EntityID:         &entityID,
			Timestamp:        a.DatePublished,
			Title:            a.Title,
			ShortDescription: a.ShortDescription,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		ei, ej := entries[i].EntityID, entries[j].EntityID
		switch {
		case ei == nil:
			return ej != nil
		case ej == nil:
			return false
		default:
			return *ei < *ej
		}
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	totalUnread, err := h.notificationRepository.CountUnviewed(userID)
	if err != nil {
		return serverError(c, "Failed to count notifications")
	}

	return success(c, map[string]interface{}{
		"notifications": entries,
		"totalUnread":   totalUnread,
	})
}

type updateNotificationRequest struct {
	NotificationID uint `json:"notificationId" validate:"required"`
	IsRead         bool `json:"isRead"`
	IsHidden       bool `json:"isHidden"`
}

// UpdateNotification marks one notification read and/or hidden.
func (h *NotificationHandler) UpdateNotification(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}

	var req updateNotificationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "notificationId is required")
	}

	if req.IsRead {
		if err := h.notificationRepository.MarkRead(userID, req.NotificationID); err != nil {
			return badRequest(c, "Notification not found")
		}
	}
	if req.IsHidden {
		if err := h.notificationRepository.Hide(userID, req.NotificationID); err != nil {
			return badRequest(c, "Notification not found")
		}
	}
	return success(c, nil)
}

type updateAllNotificationsRequest struct {
	IsRead   bool `json:"isRead"`
	IsViewed bool `json:"isViewed"`
}

// UpdateAllNotifications marks the user's whole feed viewed and optionally
// read.
func (h *NotificationHandler) UpdateAllNotifications(c echo.Context) error {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return badRequest(c, "User not authenticated")
	}

	var req updateAllNotificationsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if req.IsRead {
		if err := h.notificationRepository.MarkAllRead(userID); err != nil {
			return serverError(c, "Failed to update notifications")
		}
	} else if req.IsViewed {
		if err := h.notificationRepository.MarkAllViewed(userID); err != nil {
			return serverError(c, "Failed to update notifications")
		}
	}
	return success(c, nil)
}
