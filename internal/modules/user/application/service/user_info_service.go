package service

import (
	"errors"
	"time"

	"Mano/internal/modules/user/application/dto/request"
	"Mano/internal/modules/user/application/dto/respond"
	"Mano/internal/modules/user/domain/entity"
	"Mano/internal/modules/user/domain/repository"
	"Mano/pkg/util"
	"Mano/pkg/util/myjwt"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserInfoService 接口定义 (Application Service)
type UserInfoService interface {
	Register(registerReq request.RegisterRequest) (*respond.RegisterRespond, error)
	Login(loginReq request.LoginRequest) (*respond.LoginRespond, error)
}

type userInfoServiceImpl struct {
	repo repository.UserInfoRepository
}

// NewUserInfoService 构造函数
func NewUserInfoService(repo repository.UserInfoRepository) UserInfoService {
	return &userInfoServiceImpl{repo: repo}
}

func (u *userInfoServiceImpl) Register(registerReq request.RegisterRequest) (*respond.RegisterRespond, error) {
	// 1. 邮箱查重
	_, err := u.repo.GetUserInfoByEmail(registerReq.Email)
	if err == nil {
		return nil, xerr.New(xerr.BadRequest, "email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	// 2. 密码加盐哈希
	hashed, err := bcrypt.GenerateFromPassword([]byte(registerReq.Password), bcrypt.DefaultCost)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	newUser := entity.UserInfo{
		Uuid:      util.GenerateID("U"),
		Email:     registerReq.Email,
		Username:  registerReq.Username,
		Password:  string(hashed),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := u.repo.CreateUserInfo(&newUser); err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	token, err := myjwt.GenerateToken(newUser.Uuid, newUser.Username)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	return &respond.RegisterRespond{
		Uuid:     newUser.Uuid,
		Email:    newUser.Email,
		Username: newUser.Username,
		Token:    token,
	}, nil
}

func (u *userInfoServiceImpl) Login(loginReq request.LoginRequest) (*respond.LoginRespond, error) {
	user, err := u.repo.GetUserInfoByEmail(loginReq.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.New(xerr.Unauthorized, "invalid email or password")
		}
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(loginReq.Password)); err != nil {
		return nil, xerr.New(xerr.Unauthorized, "invalid email or password")
	}

	token, err := myjwt.GenerateToken(user.Uuid, user.Username)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	return &respond.LoginRespond{
		Uuid:     user.Uuid,
		Email:    user.Email,
		Username: user.Username,
		Token:    token,
	}, nil
}
