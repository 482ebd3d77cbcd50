package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eduniche/eduniche-backend/internal/chain"
	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
	"github.com/eduniche/eduniche-backend/internal/services"
)

type resourceApplicationService interface {
	UploadResource(ctx context.Context, uploaderID int64, input services.UploadResourceInput) (*models.Resource, error)
	ListResources(ctx context.Context, filter repository.ResourceListFilter) ([]models.Resource, int, error)
	GetResource(ctx context.Context, resourceID int64) (*models.Resource, error)
	DownloadResource(ctx context.Context, resourceID int64) (string, error)
}

type ResourceHandler struct {
	service resourceApplicationService
}

func NewResourceHandler(service *services.ResourceService) *ResourceHandler {
	return &ResourceHandler{service: service}
}

// UploadResource accepts a multipart form with a "file" part plus metadata
// fields.
func (h *ResourceHandler) UploadResource(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to read file"})
	}
	defer file.Close()

	var priceMicro int64
	if raw := strings.TrimSpace(c.FormValue("price_usdc")); raw != "" {
		priceMicro, err = chain.ParseUSDC(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price_usdc must be a valid USDC amount"})
		}
	}

	var description *string
	if raw := strings.TrimSpace(c.FormValue("description")); raw != "" {
		description = &raw
	}
	var topic *string
	if raw := strings.TrimSpace(c.FormValue("topic")); raw != "" {
		topic = &raw
	}
	var tags []string
	if raw := strings.TrimSpace(c.FormValue("tags")); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	resource, err := h.service.UploadResource(c.Context(), userID, services.UploadResourceInput{
		Title:       c.FormValue("title"),
		Description: description,
		Course:      c.FormValue("course"),
		Topic:       topic,
		PriceMicro:  priceMicro,
		Tags:        tags,
		File:        file,
		Filename:    fileHeader.Filename,
	})
	if err != nil {
		return mapResourceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"resource": resource})
}

func (h *ResourceHandler) ListResources(c *fiber.Ctx) error {
	page, limit := parsePageAndLimit(c)

	resources, total, err := h.service.ListResources(c.Context(), repository.ResourceListFilter{
		Course:   strings.TrimSpace(c.Query("course")),
		FreeOnly: c.QueryBool("free_only"),
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch resources"})
	}

	return c.JSON(fiber.Map{
		"resources":  resources,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ResourceHandler) GetResource(c *fiber.Ctx) error {
	resourceID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || resourceID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid resource id"})
	}

	resource, err := h.service.GetResource(c.Context(), resourceID)
	if err != nil {
		return mapResourceError(c, err)
	}

	return c.JSON(fiber.Map{"resource": resource})
}

func (h *ResourceHandler) DownloadResource(c *fiber.Ctx) error {
	resourceID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || resourceID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid resource id"})
	}

	url, err := h.service.DownloadResource(c.Context(), resourceID)
	if err != nil {
		return mapResourceError(c, err)
	}

	return c.JSON(fiber.Map{"download_url": url})
}

func mapResourceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrResourceNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Resource not found"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process resource request"})
	}
}
