package persistence

import (
	"context"
	"time"

	"Mano/internal/modules/team/domain/entity"
	"Mano/internal/modules/team/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type topicRepositoryImpl struct {
	db *gorm.DB
}

// NewTopicRepository 构造函数
func NewTopicRepository(db *gorm.DB) repository.TopicRepository {
	return &topicRepositoryImpl{db: db}
}

func (r *topicRepositoryImpl) Create(ctx context.Context, topic *entity.Topic) error {
	return r.db.WithContext(ctx).Create(topic).Error
}

func (r *topicRepositoryImpl) GetByTopicId(ctx context.Context, userID, topicID string) (*entity.Topic, error) {
	var topic entity.Topic
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		First(&topic).Error
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepositoryImpl) ListByUserId(ctx context.Context, userID string) ([]entity.Topic, error) {
	var topics []entity.Topic
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&topics).Error
	if err != nil {
		return nil, err
	}
	return topics, nil
}

func (r *topicRepositoryImpl) UpdateStatus(ctx context.Context, userID, topicID, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Topic{}).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// EnsureTopic 通过唯一索引 uniq_topic_user_title 做幂等创建：
// 冲突说明别的请求已经建过同名话题，DoNothing 后回查取赢家那一行
func (r *topicRepositoryImpl) EnsureTopic(ctx context.Context, topic *entity.Topic) (*entity.Topic, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "title"}},
		DoNothing: true,
	}).Create(topic).Error
	if err != nil {
		return nil, err
	}

	var existing entity.Topic
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND title = ?", topic.UserId, topic.Title).
		Take(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *topicRepositoryImpl) AddParticipants(ctx context.Context, topicID string, personIDs []string) error {
	if len(personIDs) == 0 {
		return nil
	}
	rows := make([]entity.TopicParticipant, 0, len(personIDs))
	now := time.Now()
	for _, pid := range personIDs {
		rows = append(rows, entity.TopicParticipant{
			TopicId:   topicID,
			PersonId:  pid,
			CreatedAt: now,
		})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "topic_id"}, {Name: "person_id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

func (r *topicRepositoryImpl) ListParticipants(ctx context.Context, topicID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.TopicParticipant{}).
		Where("topic_id = ?", topicID).
		Pluck("person_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
