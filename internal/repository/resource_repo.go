package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/eduniche/eduniche-backend/internal/models"
)

type ResourceRepository struct {
	db DBTX
}

func NewResourceRepository(db DBTX) *ResourceRepository {
	return &ResourceRepository{db: db}
}

type CreateResourceInput struct {
	UploaderID  int64
	Title       string
	Description *string
	FileURL     string
	FileType    string
	FileSize    int64
	Course      string
	Topic       *string
	PriceMicro  int64
	Tags        []string
}

const resourceColumns = `id, uploader_id, title, description, file_url, file_type, file_size,
	course, topic, price_micro, downloads, tags, created_at`

func (r *ResourceRepository) scanRow(row interface{ Scan(dest ...any) error }) (*models.Resource, error) {
	var resource models.Resource
	err := row.Scan(
		&resource.ID,
		&resource.UploaderID,
		&resource.Title,
		&resource.Description,
		&resource.FileURL,
		&resource.FileType,
		&resource.FileSize,
		&resource.Course,
		&resource.Topic,
		&resource.PriceMicro,
		&resource.Downloads,
		&resource.Tags,
		&resource.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

func (r *ResourceRepository) Create(ctx context.Context, input CreateResourceInput) (*models.Resource, error) {
	query := fmt.Sprintf(`
		INSERT INTO resources (uploader_id, title, description, file_url, file_type, file_size, course, topic, price_micro, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s
	`, resourceColumns)
	return r.scanRow(r.db.QueryRow(
		ctx,
		query,
		input.UploaderID,
		input.Title,
		input.Description,
		input.FileURL,
		input.FileType,
		input.FileSize,
		input.Course,
		input.Topic,
		input.PriceMicro,
		input.Tags,
	))
}

func (r *ResourceRepository) GetByID(ctx context.Context, resourceID int64) (*models.Resource, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM resources
		WHERE id = $1
	`, resourceColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, resourceID))
}

type ResourceListFilter struct {
	Course   string
	FreeOnly bool
	Limit    int
	Offset   int
}

func (r *ResourceRepository) List(
	ctx context.Context,
	filter ResourceListFilter,
) ([]models.Resource, int, error) {
	args := []any{}
	whereParts := []string{"TRUE"}

	if course := strings.TrimSpace(filter.Course); course != "" {
		args = append(args, course)
		whereParts = append(whereParts, fmt.Sprintf("course = $%d", len(args)))
	}
	if filter.FreeOnly {
		whereParts = append(whereParts, "price_micro = 0")
	}

	where := strings.Join(whereParts, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM resources WHERE %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM resources
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, resourceColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	resources := make([]models.Resource, 0)
	for rows.Next() {
		var resource models.Resource
		if err := rows.Scan(
			&resource.ID,
			&resource.UploaderID,
			&resource.Title,
			&resource.Description,
			&resource.FileURL,
			&resource.FileType,
			&resource.FileSize,
			&resource.Course,
			&resource.Topic,
			&resource.PriceMicro,
			&resource.Downloads,
			&resource.Tags,
			&resource.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return resources, total, nil
}

func (r *ResourceRepository) IncrementDownloads(ctx context.Context, resourceID int64) error {
	_, err := r.db.Exec(
		ctx,
		`UPDATE resources SET downloads = downloads + 1 WHERE id = $1`,
		resourceID,
	)
	return err
}
