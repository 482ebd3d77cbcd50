package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
)

var (
	ErrStorageUnavailable = errors.New("storage service is not configured")
	ErrResourceNotFound   = errors.New("resource not found")
)

const maxResourceBytes = 50 << 20

var allowedResourceExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".txt":  true,
	".md":   true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".zip":  true,
}

type resourceStore interface {
	Create(ctx context.Context, input repository.CreateResourceInput) (*models.Resource, error)
	GetByID(ctx context.Context, resourceID int64) (*models.Resource, error)
	List(ctx context.Context, filter repository.ResourceListFilter) ([]models.Resource, int, error)
	IncrementDownloads(ctx context.Context, resourceID int64) error
}

type ResourceService struct {
	resourceRepo resourceStore
	storage      StorageService
}

func NewResourceService(resourceRepo *repository.ResourceRepository, storage StorageService) *ResourceService {
	return &ResourceService{resourceRepo: resourceRepo, storage: storage}
}

type UploadResourceInput struct {
	Title       string
	Description *string
	Course      string
	Topic       *string
	PriceMicro  int64
	Tags        []string
	File        io.Reader
	Filename    string
}

func (s *ResourceService) UploadResource(
	ctx context.Context,
	uploaderID int64,
	input UploadResourceInput,
) (*models.Resource, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	title := strings.TrimSpace(input.Title)
	course := strings.TrimSpace(input.Course)
	if title == "" || course == "" || input.File == nil {
		return nil, ErrInvalidInput
	}
	if input.PriceMicro < 0 {
		return nil, ErrInvalidInput
	}

	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(input.Filename)))
	if !allowedResourceExtensions[ext] {
		return nil, ErrInvalidInput
	}

	objectName := uuid.NewString() + ext
	limited := io.LimitReader(input.File, maxResourceBytes+1)
	fileURL, size, err := s.storage.Upload(ctx, limited, objectName, "resources")
	if err != nil {
		return nil, err
	}
	if size > maxResourceBytes {
		if cleanupErr := s.storage.Delete(ctx, fileURL); cleanupErr != nil {
			log.Printf("cleanup oversized upload %s: %v", fileURL, cleanupErr)
		}
		return nil, ErrInvalidInput
	}

	resource, err := s.resourceRepo.Create(ctx, repository.CreateResourceInput{
		UploaderID:  uploaderID,
		Title:       title,
		Description: input.Description,
		FileURL:     fileURL,
		FileType:    strings.TrimPrefix(ext, "."),
		FileSize:    size,
		Course:      course,
		Topic:       input.Topic,
		PriceMicro:  input.PriceMicro,
		Tags:        input.Tags,
	})
	if err != nil {
		if cleanupErr := s.storage.Delete(ctx, fileURL); cleanupErr != nil {
			return nil, errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
		}
		return nil, err
	}

	return resource, nil
}

func (s *ResourceService) ListResources(
	ctx context.Context,
	filter repository.ResourceListFilter,
) ([]models.Resource, int, error) {
	return s.resourceRepo.List(ctx, filter)
}

func (s *ResourceService) GetResource(ctx context.Context, resourceID int64) (*models.Resource, error) {
	resource, err := s.resourceRepo.GetByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return resource, nil
}

// DownloadResource hands back a time-limited URL and counts the download.
// Paid resources are out of scope for enforcement here; the price is
// informational until resource payments ship.
func (s *ResourceService) DownloadResource(ctx context.Context, resourceID int64) (string, error) {
	if s.storage == nil {
		return "", ErrStorageUnavailable
	}

	resource, err := s.GetResource(ctx, resourceID)
	if err != nil {
		return "", err
	}

	signedURL, err := s.storage.SignedURL(ctx, resource.FileURL)
	if err != nil {
		return "", err
	}
	if err := s.resourceRepo.IncrementDownloads(ctx, resourceID); err != nil {
		log.Printf("increment downloads for resource %d: %v", resourceID, err)
	}

	return signedURL, nil
}
