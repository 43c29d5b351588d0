package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"talktime/internal/domain"
	"talktime/internal/middleware"
	"talktime/internal/service/notification"
	"talktime/internal/service/preference"
)

type NotificationHandler struct {
	notifService notification.Service
	preferences  preference.Resolver
}

func NewNotificationHandler(notifService notification.Service, preferences preference.Resolver) *NotificationHandler {
	return &NotificationHandler{
		notifService: notifService,
		preferences:  preferences,
	}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	role, err := middleware.GetUserRole(c)
	if err != nil {
		return err
	}

	params := domain.PaginationParams{}
	if page, err := strconv.Atoi(c.Query("page", "1")); err == nil {
		params.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit", "20")); err == nil {
		params.PageSize = limit
	}

	filter := domain.NotificationFilter{
		Status:   domain.ReadStatus(c.Query("status")),
		Priority: domain.Priority(c.Query("priority")),
		Type:     domain.NotificationType(c.Query("type")),
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		return middleware.BadRequest("Invalid priority filter")
	}

	result, err := h.notifService.List(c.Context(), userID, role, filter, params)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	role, err := middleware.GetUserRole(c)
	if err != nil {
		return err
	}

	count, err := h.notifService.UnreadCount(c.Context(), userID, role)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count": count,
	})
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	notifID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.BadRequest("Invalid notification ID")
	}

	if err := h.notifService.MarkAsRead(c.Context(), notifID, userID); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}

func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	role, err := middleware.GetUserRole(c)
	if err != nil {
		return err
	}

	if err := h.notifService.MarkAllAsRead(c.Context(), userID, role); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	notifID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.BadRequest("Invalid notification ID")
	}

	if err := h.notifService.Delete(c.Context(), notifID, userID); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}

// InvalidatePreferences is called by the settings-update path after it has
// written new preferences, so the resolver stops serving the stale entry.
func (h *NotificationHandler) InvalidatePreferences(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	h.preferences.Invalidate(userID)

	return c.Status(fiber.StatusNoContent).SendString("")
}
