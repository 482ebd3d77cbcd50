package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
)

var (
	ErrGroupFull      = errors.New("study group is full")
	ErrNotGroupMember = errors.New("not a member of this group")
	ErrGroupNotFound  = errors.New("study group not found")
)

const (
	defaultGroupMaxMembers = 10
	maxGroupMaxMembers     = 100
	maxMessageLength       = 2000
)

type GroupService struct {
	db        *pgxpool.Pool
	groupRepo *repository.StudyGroupRepository
}

func NewGroupService(db *pgxpool.Pool, groupRepo *repository.StudyGroupRepository) *GroupService {
	return &GroupService{db: db, groupRepo: groupRepo}
}

type CreateGroupInput struct {
	Name        string
	Description *string
	Course      string
	Topic       *string
	MaxMembers  int
	IsPrivate   bool
	Tags        []string
}

// CreateGroup creates the group and enrolls the creator as its first member.
func (s *GroupService) CreateGroup(
	ctx context.Context,
	creatorID int64,
	input CreateGroupInput,
) (*models.StudyGroupSummary, error) {
	name := strings.TrimSpace(input.Name)
	course := strings.TrimSpace(input.Course)
	if name == "" || course == "" {
		return nil, ErrInvalidInput
	}
	maxMembers := input.MaxMembers
	if maxMembers == 0 {
		maxMembers = defaultGroupMaxMembers
	}
	if maxMembers < 2 || maxMembers > maxGroupMaxMembers {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txGroupRepo := repository.NewStudyGroupRepository(tx)

	group, err := txGroupRepo.Create(ctx, repository.CreateStudyGroupInput{
		Name:        name,
		Description: input.Description,
		Course:      course,
		Topic:       input.Topic,
		CreatorID:   creatorID,
		MaxMembers:  maxMembers,
		IsPrivate:   input.IsPrivate,
		Tags:        input.Tags,
	})
	if err != nil {
		return nil, err
	}
	if err := txGroupRepo.AddMember(ctx, group.ID, creatorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.StudyGroupSummary{StudyGroup: *group, MemberCount: 1}, nil
}

// JoinGroup adds the user unless the group is at capacity. The per-group
// advisory lock serializes the count and insert so two joiners cannot both
// take the last seat.
func (s *GroupService) JoinGroup(ctx context.Context, groupID, userID int64) (*models.StudyGroupSummary, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txGroupRepo := repository.NewStudyGroupRepository(tx)

	group, err := txGroupRepo.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(2, $1)", groupID); err != nil {
		return nil, err
	}

	count, err := txGroupRepo.CountMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	alreadyMember, err := txGroupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !alreadyMember {
		if count >= group.MaxMembers {
			return nil, ErrGroupFull
		}
		if err := txGroupRepo.AddMember(ctx, groupID, userID); err != nil {
			return nil, err
		}
		count++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.StudyGroupSummary{StudyGroup: *group, MemberCount: count}, nil
}

func (s *GroupService) LeaveGroup(ctx context.Context, groupID, userID int64) error {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrGroupNotFound
		}
		return err
	}
	isMember, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotGroupMember
	}
	return s.groupRepo.RemoveMember(ctx, groupID, userID)
}

func (s *GroupService) ListGroups(
	ctx context.Context,
	filter repository.StudyGroupListFilter,
) ([]models.StudyGroupSummary, int, error) {
	return s.groupRepo.List(ctx, filter)
}

// GetGroup returns the group with its live member count. Private groups are
// visible to members only.
func (s *GroupService) GetGroup(ctx context.Context, groupID, userID int64) (*models.StudyGroupSummary, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if group.IsPrivate {
		isMember, err := s.groupRepo.IsMember(ctx, groupID, userID)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, ErrForbidden
		}
	}
	count, err := s.groupRepo.CountMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &models.StudyGroupSummary{StudyGroup: *group, MemberCount: count}, nil
}

func (s *GroupService) ListMessages(
	ctx context.Context,
	groupID int64,
	userID int64,
	limit int,
	offset int,
) ([]models.GroupMessage, int, error) {
	if err := s.requireMembership(ctx, groupID, userID); err != nil {
		return nil, 0, err
	}
	return s.groupRepo.ListMessages(ctx, groupID, limit, offset)
}

func (s *GroupService) PostMessage(
	ctx context.Context,
	groupID int64,
	senderID int64,
	content string,
) (*models.GroupMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxMessageLength {
		return nil, ErrInvalidInput
	}
	if err := s.requireMembership(ctx, groupID, senderID); err != nil {
		return nil, err
	}
	return s.groupRepo.CreateMessage(ctx, groupID, senderID, content)
}

// RequireMembership reports whether the user may read the group's message
// stream. Used by the websocket upgrade path before a client joins a room.
func (s *GroupService) RequireMembership(ctx context.Context, groupID, userID int64) error {
	return s.requireMembership(ctx, groupID, userID)
}

func (s *GroupService) requireMembership(ctx context.Context, groupID, userID int64) error {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrGroupNotFound
		}
		return err
	}
	isMember, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotGroupMember
	}
	return nil
}
