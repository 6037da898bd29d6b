package repository

import (
	"context"

	"Mano/internal/modules/team/domain/entity"
)

// PersonRepository 团队成员仓储，所有读写都按 user_id 租户隔离
type PersonRepository interface {
	Create(ctx context.Context, person *entity.Person) error
	GetByPersonId(ctx context.Context, userID, personID string) (*entity.Person, error)
	ListByUserId(ctx context.Context, userID string) ([]entity.Person, error)
	Update(ctx context.Context, person *entity.Person) error
	Delete(ctx context.Context, userID, personID string) error
}
