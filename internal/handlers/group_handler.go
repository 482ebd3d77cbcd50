package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
	"github.com/eduniche/eduniche-backend/internal/services"
)

type groupApplicationService interface {
	CreateGroup(ctx context.Context, creatorID int64, input services.CreateGroupInput) (*models.StudyGroupSummary, error)
	JoinGroup(ctx context.Context, groupID, userID int64) (*models.StudyGroupSummary, error)
	LeaveGroup(ctx context.Context, groupID, userID int64) error
	ListGroups(ctx context.Context, filter repository.StudyGroupListFilter) ([]models.StudyGroupSummary, int, error)
	GetGroup(ctx context.Context, groupID, userID int64) (*models.StudyGroupSummary, error)
	ListMessages(ctx context.Context, groupID, userID int64, limit, offset int) ([]models.GroupMessage, int, error)
	PostMessage(ctx context.Context, groupID, senderID int64, content string) (*models.GroupMessage, error)
}

type groupBroadcaster interface {
	Broadcast(groupID int64, message *models.GroupMessage)
}

type GroupHandler struct {
	service groupApplicationService
	hub     groupBroadcaster
}

func NewGroupHandler(service *services.GroupService, hub groupBroadcaster) *GroupHandler {
	return &GroupHandler{service: service, hub: hub}
}

type createGroupRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Course      string   `json:"course"`
	Topic       *string  `json:"topic"`
	MaxMembers  int      `json:"max_members"`
	IsPrivate   bool     `json:"is_private"`
	Tags        []string `json:"tags"`
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	group, err := h.service.CreateGroup(c.Context(), userID, services.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Course:      req.Course,
		Topic:       req.Topic,
		MaxMembers:  req.MaxMembers,
		IsPrivate:   req.IsPrivate,
		Tags:        req.Tags,
	})
	if err != nil {
		return mapGroupError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"group": group})
}

func (h *GroupHandler) ListGroups(c *fiber.Ctx) error {
	page, limit := parsePageAndLimit(c)

	groups, total, err := h.service.ListGroups(c.Context(), repository.StudyGroupListFilter{
		Course: strings.TrimSpace(c.Query("course")),
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch study groups"})
	}

	return c.JSON(fiber.Map{
		"groups":     groups,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *GroupHandler) GetGroup(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	group, err := h.service.GetGroup(c.Context(), groupID, userID)
	if err != nil {
		return mapGroupError(c, err)
	}

	return c.JSON(fiber.Map{"group": group})
}

func (h *GroupHandler) JoinGroup(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	group, err := h.service.JoinGroup(c.Context(), groupID, userID)
	if err != nil {
		return mapGroupError(c, err)
	}

	return c.JSON(fiber.Map{"group": group})
}

func (h *GroupHandler) LeaveGroup(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	if err := h.service.LeaveGroup(c.Context(), groupID, userID); err != nil {
		return mapGroupError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *GroupHandler) ListMessages(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	page, limit := parsePageAndLimit(c)
	messages, total, err := h.service.ListMessages(c.Context(), groupID, userID, limit, (page-1)*limit)
	if err != nil {
		return mapGroupError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

// PostMessage stores the message and fans it out to connected members.
func (h *GroupHandler) PostMessage(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	var req postMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.PostMessage(c.Context(), groupID, userID, req.Content)
	if err != nil {
		return mapGroupError(c, err)
	}

	if h.hub != nil {
		h.hub.Broadcast(groupID, message)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func parseGroupID(c *fiber.Ctx) (int64, error) {
	groupID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || groupID <= 0 {
		return 0, errInvalidNumber
	}
	return groupID, nil
}

func mapGroupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrGroupNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Study group not found"})
	case errors.Is(err, services.ErrGroupFull):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Study group is full"})
	case errors.Is(err, services.ErrNotGroupMember):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a member of this group"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process group request"})
	}
}
