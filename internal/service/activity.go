package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/repository"
	"go.uber.org/zap"
)

// ActivityService handles community activities: check-ins, support offers,
// events and the like. Activities carry no pebs; they only generate
// notifications.
type ActivityService struct {
	repo     *repository.Repository
	notifier *NotificationService
}

func NewActivityService(repo *repository.Repository, notifier *NotificationService) *ActivityService {
	return &ActivityService{repo: repo, notifier: notifier}
}

const checkInFanOut = 5

type CreateActivityCmd struct {
	InitiatorID  uuid.UUID
	ActivityType string
	TargetUserID *uuid.UUID
	Title        string
	Description  string
	Location     string
	Tags         []string
	StartDate    *time.Time
	EndDate      *time.Time
	IsPublic     bool
}

func (s *ActivityService) Create(ctx context.Context, cmd CreateActivityCmd) (*models.CommunityActivity, error) {
	if _, ok := domain.ActivityTypes[cmd.ActivityType]; !ok {
		return nil, models.ErrInvalidActivity
	}

	initiator, err := s.repo.GetUser(ctx, cmd.InitiatorID)
	if err != nil {
		return nil, err
	}
	if cmd.TargetUserID != nil {
		if _, err := s.repo.GetUser(ctx, *cmd.TargetUserID); err != nil {
			return nil, err
		}
	}

	activity := &models.CommunityActivity{
		ID:           uuid.New(),
		ActivityType: cmd.ActivityType,
		InitiatorID:  cmd.InitiatorID,
		TargetUserID: cmd.TargetUserID,
		Title:        cmd.Title,
		Description:  cmd.Description,
		Location:     cmd.Location,
		Tags:         cmd.Tags,
		StartDate:    cmd.StartDate,
		EndDate:      cmd.EndDate,
		IsPublic:     cmd.IsPublic,
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return nil, err
	}

	if cmd.TargetUserID != nil {
		if _, err := s.notifier.Notify(ctx, *cmd.TargetUserID,
			domain.NotifyCommunityActivity,
			"New Community Activity",
			fmt.Sprintf("%s started a %s that involves you.", initiator.DisplayName, cmd.ActivityType),
			models.NotificationData{ActivityID: &activity.ID, ActorID: &initiator.ID},
			domain.PriorityMedium); err != nil {
			zap.L().Warn("activity target notification failed", zap.Error(err))
		}
	}

	if cmd.ActivityType == domain.ActivityCheckIn {
		s.fanOutCheckIn(ctx, initiator, activity)
	}

	return activity, nil
}

// fanOutCheckIn alerts a handful of recently active members that someone may
// need community support. Best-effort per recipient.
func (s *ActivityService) fanOutCheckIn(ctx context.Context, initiator *models.User, activity *models.CommunityActivity) {
	exclude := []uuid.UUID{initiator.ID}
	if activity.TargetUserID != nil {
		exclude = append(exclude, *activity.TargetUserID)
	}
	members, err := s.repo.RandomActiveUsers(ctx, exclude, checkInFanOut)
	if err != nil {
		zap.L().Warn("check-in fan-out lookup failed", zap.Error(err))
		return
	}
	for _, member := range members {
		if _, err := s.notifier.Notify(ctx, member.ID,
			domain.NotifyCommunitySupport,
			"Community Support Activity",
			fmt.Sprintf("%s started a community check-in for a member who might need support.", initiator.DisplayName),
			models.NotificationData{ActivityID: &activity.ID},
			domain.PriorityHigh); err != nil {
			zap.L().Warn("check-in notification failed", zap.Error(err), zap.String("recipient", member.ID.String()))
		}
	}
}

// Get returns the activity with its responses. Private activities are visible
// only to the initiator and the target user.
func (s *ActivityService) Get(ctx context.Context, id, viewerID uuid.UUID) (*models.CommunityActivity, error) {
	activity, err := s.repo.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if !activity.IsPublic {
		allowed := viewerID == activity.InitiatorID ||
			(activity.TargetUserID != nil && viewerID == *activity.TargetUserID)
		if !allowed {
			return nil, models.ErrActivityNotVisible
		}
	}
	return activity, nil
}

func (s *ActivityService) List(ctx context.Context, f repository.ActivityFilter, page, pageSize int) ([]models.CommunityActivity, int64, error) {
	limit, offset := clampPage(page, pageSize)
	return s.repo.ListActivities(ctx, f, limit, offset)
}

type RespondCmd struct {
	ActivityID   uuid.UUID
	UserID       uuid.UUID
	Response     string
	ResponseType string
}

// Respond records the member's single response to an activity; a repeated
// response replaces the earlier one. Initiator and target are notified.
func (s *ActivityService) Respond(ctx context.Context, cmd RespondCmd) (*models.CommunityActivity, error) {
	if _, ok := domain.ActivityResponseTypes[cmd.ResponseType]; !ok {
		return nil, models.ErrInvalidResponse
	}

	activity, err := s.repo.GetActivity(ctx, cmd.ActivityID)
	if err != nil {
		return nil, err
	}
	responder, err := s.repo.GetUser(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	resp := &models.ActivityResponse{
		ActivityID:   cmd.ActivityID,
		UserID:       cmd.UserID,
		Response:     cmd.Response,
		ResponseType: cmd.ResponseType,
	}
	if err := s.repo.UpsertActivityResponse(ctx, resp); err != nil {
		return nil, err
	}

	if activity.InitiatorID != cmd.UserID {
		if _, err := s.notifier.Notify(ctx, activity.InitiatorID,
			domain.NotifyCommunityActivity,
			"New Response to Your Activity",
			fmt.Sprintf("%s responded to your community activity.", responder.DisplayName),
			models.NotificationData{ActivityID: &activity.ID, ActorID: &responder.ID},
			domain.PriorityMedium); err != nil {
			zap.L().Warn("response notification failed", zap.Error(err))
		}
	}
	if activity.TargetUserID != nil && *activity.TargetUserID != cmd.UserID {
		if _, err := s.notifier.Notify(ctx, *activity.TargetUserID,
			domain.NotifyCommunityActivity,
			"New Response to Activity About You",
			fmt.Sprintf("%s responded to a community activity that involves you.", responder.DisplayName),
			models.NotificationData{ActivityID: &activity.ID, ActorID: &responder.ID},
			domain.PriorityMedium); err != nil {
			zap.L().Warn("response target notification failed", zap.Error(err))
		}
	}

	return s.repo.GetActivity(ctx, cmd.ActivityID)
}

// SetStatus moves an activity to completed or cancelled. Only the initiator
// may transition it, and only out of the active state.
func (s *ActivityService) SetStatus(ctx context.Context, activityID, actorID uuid.UUID, status string) (*models.CommunityActivity, error) {
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity.InitiatorID != actorID {
		return nil, models.ErrNotInitiator
	}
	if !canTransitionActivity(activity.Status, status) {
		return nil, models.ErrInvalidTransition
	}

	rows, err := s.repo.UpdateActivityStatus(ctx, activityID, activity.Status, status)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.ErrInvalidTransition
	}
	return s.repo.GetActivity(ctx, activityID)
}
