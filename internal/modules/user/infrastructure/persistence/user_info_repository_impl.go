package persistence

import (
	"Mano/internal/modules/user/domain/entity"
	"Mano/internal/modules/user/domain/repository"

	"gorm.io/gorm"
)

type userInfoRepositoryImpl struct {
	db *gorm.DB
}

// NewUserInfoRepository 构造函数
func NewUserInfoRepository(db *gorm.DB) repository.UserInfoRepository {
	return &userInfoRepositoryImpl{db: db}
}

func (r *userInfoRepositoryImpl) CreateUserInfo(user *entity.UserInfo) error {
	return r.db.Create(user).Error
}

func (r *userInfoRepositoryImpl) GetUserInfoByEmail(email string) (*entity.UserInfo, error) {
	var user entity.UserInfo
	// First 查不到会返回 ErrRecordNotFound
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userInfoRepositoryImpl) GetUserInfoByUUID(uuid string) (*entity.UserInfo, error) {
	var user entity.UserInfo
	err := r.db.Where("uuid = ?", uuid).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
