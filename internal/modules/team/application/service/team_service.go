package service

import (
	"context"
	"errors"
	"time"

	"Mano/internal/modules/team/application/dto/request"
	"Mano/internal/modules/team/application/dto/respond"
	"Mano/internal/modules/team/domain/entity"
	"Mano/internal/modules/team/domain/repository"
	"Mano/pkg/util"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TeamService 团队成员与话题的应用服务
type TeamService interface {
	CreatePerson(ctx context.Context, userID string, req request.CreatePersonRequest) (*respond.PersonItem, error)
	GetPersonList(ctx context.Context, userID string) ([]respond.PersonItem, error)
	UpdatePerson(ctx context.Context, userID string, req request.UpdatePersonRequest) (*respond.PersonItem, error)
	DeletePerson(ctx context.Context, userID string, req request.DeletePersonRequest) error
	CreateTopic(ctx context.Context, userID string, req request.CreateTopicRequest) (*respond.TopicItem, error)
	GetTopicList(ctx context.Context, userID string) ([]respond.TopicItem, error)
	ArchiveTopic(ctx context.Context, userID string, req request.ArchiveTopicRequest) error
	// GetOrCreateGeneralTopic 惰性创建每用户的默认辅导话题，并发安全
	GetOrCreateGeneralTopic(ctx context.Context, userID string) (*entity.Topic, error)
}

type teamServiceImpl struct {
	personRepo repository.PersonRepository
	topicRepo  repository.TopicRepository
}

// NewTeamService 构造函数
func NewTeamService(personRepo repository.PersonRepository, topicRepo repository.TopicRepository) TeamService {
	return &teamServiceImpl{personRepo: personRepo, topicRepo: topicRepo}
}

func (s *teamServiceImpl) CreatePerson(ctx context.Context, userID string, req request.CreatePersonRequest) (*respond.PersonItem, error) {
	relationship := req.RelationshipType
	if relationship == "" {
		relationship = entity.RelationshipDirectReport
	}
	switch relationship {
	case entity.RelationshipDirectReport, entity.RelationshipManager,
		entity.RelationshipPeer, entity.RelationshipStakeholder, entity.RelationshipAssistant:
	default:
		return nil, xerr.New(xerr.BadRequest, "unknown relationship type")
	}

	now := time.Now()
	person := entity.Person{
		PersonId:         util.GenerateID("P"),
		UserId:           userID,
		Name:             req.Name,
		Role:             req.Role,
		RelationshipType: relationship,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.personRepo.Create(ctx, &person); err != nil {
		zlog.Error("create person failed", zap.String("userID", userID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	item := toPersonItem(&person)
	return &item, nil
}

func (s *teamServiceImpl) GetPersonList(ctx context.Context, userID string) ([]respond.PersonItem, error) {
	people, err := s.personRepo.ListByUserId(ctx, userID)
	if err != nil {
		zlog.Error("list people failed", zap.String("userID", userID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	items := make([]respond.PersonItem, 0, len(people))
	for i := range people {
		items = append(items, toPersonItem(&people[i]))
	}
	return items, nil
}

func (s *teamServiceImpl) UpdatePerson(ctx context.Context, userID string, req request.UpdatePersonRequest) (*respond.PersonItem, error) {
	person, err := s.personRepo.GetByPersonId(ctx, userID, req.PersonId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrNotFound
		}
		zlog.Error("load person failed", zap.String("personID", req.PersonId), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	if req.Name != "" {
		person.Name = req.Name
	}
	if req.Role != "" {
		person.Role = req.Role
	}
	if req.RelationshipType != "" {
		person.RelationshipType = req.RelationshipType
	}
	person.UpdatedAt = time.Now()

	if err := s.personRepo.Update(ctx, person); err != nil {
		zlog.Error("update person failed", zap.String("personID", req.PersonId), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	item := toPersonItem(person)
	return &item, nil
}

func (s *teamServiceImpl) DeletePerson(ctx context.Context, userID string, req request.DeletePersonRequest) error {
	if _, err := s.personRepo.GetByPersonId(ctx, userID, req.PersonId); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xerr.ErrNotFound
		}
		zlog.Error("load person failed", zap.String("personID", req.PersonId), zap.Error(err))
		return xerr.ErrServerError
	}
	if err := s.personRepo.Delete(ctx, userID, req.PersonId); err != nil {
		zlog.Error("delete person failed", zap.String("personID", req.PersonId), zap.Error(err))
		return xerr.ErrServerError
	}
	return nil
}

func (s *teamServiceImpl) CreateTopic(ctx context.Context, userID string, req request.CreateTopicRequest) (*respond.TopicItem, error) {
	now := time.Now()
	topic := entity.Topic{
		TopicId:     util.GenerateID("T"),
		UserId:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      entity.TopicStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	saved, err := s.topicRepo.EnsureTopic(ctx, &topic)
	if err != nil {
		zlog.Error("create topic failed", zap.String("userID", userID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	if len(req.Participants) > 0 {
		if err := s.topicRepo.AddParticipants(ctx, saved.TopicId, req.Participants); err != nil {
			zlog.Error("add topic participants failed", zap.String("topicID", saved.TopicId), zap.Error(err))
			return nil, xerr.ErrServerError
		}
	}

	participants, err := s.topicRepo.ListParticipants(ctx, saved.TopicId)
	if err != nil {
		zlog.Error("list topic participants failed", zap.String("topicID", saved.TopicId), zap.Error(err))
		participants = nil
	}
	item := toTopicItem(saved, participants)
	return &item, nil
}

func (s *teamServiceImpl) GetTopicList(ctx context.Context, userID string) ([]respond.TopicItem, error) {
	topics, err := s.topicRepo.ListByUserId(ctx, userID)
	if err != nil {
		zlog.Error("list topics failed", zap.String("userID", userID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	items := make([]respond.TopicItem, 0, len(topics))
	for i := range topics {
		participants, err := s.topicRepo.ListParticipants(ctx, topics[i].TopicId)
		if err != nil {
			participants = nil
		}
		items = append(items, toTopicItem(&topics[i], participants))
	}
	return items, nil
}

func (s *teamServiceImpl) ArchiveTopic(ctx context.Context, userID string, req request.ArchiveTopicRequest) error {
	if _, err := s.topicRepo.GetByTopicId(ctx, userID, req.TopicId); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xerr.ErrNotFound
		}
		zlog.Error("load topic failed", zap.String("topicID", req.TopicId), zap.Error(err))
		return xerr.ErrServerError
	}
	if err := s.topicRepo.UpdateStatus(ctx, userID, req.TopicId, entity.TopicStatusArchived); err != nil {
		zlog.Error("archive topic failed", zap.String("topicID", req.TopicId), zap.Error(err))
		return xerr.ErrServerError
	}
	return nil
}

func (s *teamServiceImpl) GetOrCreateGeneralTopic(ctx context.Context, userID string) (*entity.Topic, error) {
	now := time.Now()
	topic := entity.Topic{
		TopicId:     util.GenerateID("T"),
		UserId:      userID,
		Title:       entity.GeneralTopicTitle,
		Description: "Default coaching conversation",
		Status:      entity.TopicStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.topicRepo.EnsureTopic(ctx, &topic)
}

func toPersonItem(p *entity.Person) respond.PersonItem {
	return respond.PersonItem{
		PersonId:         p.PersonId,
		Name:             p.Name,
		Role:             p.Role,
		RelationshipType: p.RelationshipType,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
	}
}

func toTopicItem(t *entity.Topic, participants []string) respond.TopicItem {
	return respond.TopicItem{
		TopicId:      t.TopicId,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Participants: participants,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
}
