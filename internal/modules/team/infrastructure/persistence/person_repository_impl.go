package persistence

import (
	"context"

	"Mano/internal/modules/team/domain/entity"
	"Mano/internal/modules/team/domain/repository"

	"gorm.io/gorm"
)

type personRepositoryImpl struct {
	db *gorm.DB
}

// NewPersonRepository 构造函数
func NewPersonRepository(db *gorm.DB) repository.PersonRepository {
	return &personRepositoryImpl{db: db}
}

func (r *personRepositoryImpl) Create(ctx context.Context, person *entity.Person) error {
	return r.db.WithContext(ctx).Create(person).Error
}

func (r *personRepositoryImpl) GetByPersonId(ctx context.Context, userID, personID string) (*entity.Person, error) {
	var person entity.Person
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND person_id = ?", userID, personID).
		First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

func (r *personRepositoryImpl) ListByUserId(ctx context.Context, userID string) ([]entity.Person, error) {
	var people []entity.Person
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&people).Error
	if err != nil {
		return nil, err
	}
	return people, nil
}

func (r *personRepositoryImpl) Update(ctx context.Context, person *entity.Person) error {
	return r.db.WithContext(ctx).
		Model(&entity.Person{}).
		Where("user_id = ? AND person_id = ?", person.UserId, person.PersonId).
		Updates(map[string]interface{}{
			"name":              person.Name,
			"role":              person.Role,
			"relationship_type": person.RelationshipType,
			"updated_at":        person.UpdatedAt,
		}).Error
}

func (r *personRepositoryImpl) Delete(ctx context.Context, userID, personID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND person_id = ?", userID, personID).
		Delete(&entity.Person{}).Error
}
