package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/eduniche/eduniche-backend/internal/models"
)

type StudyGroupRepository struct {
	db DBTX
}

func NewStudyGroupRepository(db DBTX) *StudyGroupRepository {
	return &StudyGroupRepository{db: db}
}

type CreateStudyGroupInput struct {
	Name        string
	Description *string
	Course      string
	Topic       *string
	CreatorID   int64
	MaxMembers  int
	IsPrivate   bool
	Tags        []string
}

const studyGroupColumns = `id, name, description, course, topic, creator_id, max_members, is_private, tags, created_at`

func (r *StudyGroupRepository) scanRow(row interface{ Scan(dest ...any) error }) (*models.StudyGroup, error) {
	var group models.StudyGroup
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.Course,
		&group.Topic,
		&group.CreatorID,
		&group.MaxMembers,
		&group.IsPrivate,
		&group.Tags,
		&group.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *StudyGroupRepository) Create(ctx context.Context, input CreateStudyGroupInput) (*models.StudyGroup, error) {
	query := fmt.Sprintf(`
		INSERT INTO study_groups (name, description, course, topic, creator_id, max_members, is_private, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s
	`, studyGroupColumns)
	return r.scanRow(r.db.QueryRow(
		ctx,
		query,
		input.Name,
		input.Description,
		input.Course,
		input.Topic,
		input.CreatorID,
		input.MaxMembers,
		input.IsPrivate,
		input.Tags,
	))
}

func (r *StudyGroupRepository) GetByID(ctx context.Context, groupID int64) (*models.StudyGroup, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM study_groups
		WHERE id = $1
	`, studyGroupColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, groupID))
}

type StudyGroupListFilter struct {
	Course string
	Limit  int
	Offset int
}

func (r *StudyGroupRepository) List(
	ctx context.Context,
	filter StudyGroupListFilter,
) ([]models.StudyGroupSummary, int, error) {
	args := []any{}
	whereParts := []string{"NOT g.is_private"}

	if course := strings.TrimSpace(filter.Course); course != "" {
		args = append(args, course)
		whereParts = append(whereParts, fmt.Sprintf("g.course = $%d", len(args)))
	}

	where := strings.Join(whereParts, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM study_groups g WHERE %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT g.id, g.name, g.description, g.course, g.topic, g.creator_id,
			   g.max_members, g.is_private, g.tags, g.created_at,
			   (SELECT COUNT(*) FROM study_group_members m WHERE m.group_id = g.id) AS member_count
		FROM study_groups g
		WHERE %s
		ORDER BY g.created_at DESC, g.id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	groups := make([]models.StudyGroupSummary, 0)
	for rows.Next() {
		var group models.StudyGroupSummary
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Description,
			&group.Course,
			&group.Topic,
			&group.CreatorID,
			&group.MaxMembers,
			&group.IsPrivate,
			&group.Tags,
			&group.CreatedAt,
			&group.MemberCount,
		); err != nil {
			return nil, 0, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return groups, total, nil
}

func (r *StudyGroupRepository) CountMembers(ctx context.Context, groupID int64) (int, error) {
	var count int
	err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM study_group_members WHERE group_id = $1`,
		groupID,
	).Scan(&count)
	return count, err
}

func (r *StudyGroupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var isMember bool
	err := r.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM study_group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID,
		userID,
	).Scan(&isMember)
	return isMember, err
}

func (r *StudyGroupRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	query := `
		INSERT INTO study_group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, groupID, userID)
	return err
}

func (r *StudyGroupRepository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	_, err := r.db.Exec(
		ctx,
		`DELETE FROM study_group_members WHERE group_id = $1 AND user_id = $2`,
		groupID,
		userID,
	)
	return err
}

func (r *StudyGroupRepository) CreateMessage(
	ctx context.Context,
	groupID int64,
	senderID int64,
	content string,
) (*models.GroupMessage, error) {
	query := `
		INSERT INTO study_group_messages (group_id, sender_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, group_id, sender_id, content, created_at
	`
	var message models.GroupMessage
	err := r.db.QueryRow(ctx, query, groupID, senderID, content).Scan(
		&message.ID,
		&message.GroupID,
		&message.SenderID,
		&message.Content,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *StudyGroupRepository) ListMessages(
	ctx context.Context,
	groupID int64,
	limit int,
	offset int,
) ([]models.GroupMessage, int, error) {
	var total int
	if err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM study_group_messages WHERE group_id = $1`,
		groupID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, group_id, sender_id, content, created_at
		FROM study_group_messages
		WHERE group_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.GroupMessage, 0)
	for rows.Next() {
		var message models.GroupMessage
		if err := rows.Scan(
			&message.ID,
			&message.GroupID,
			&message.SenderID,
			&message.Content,
			&message.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}
