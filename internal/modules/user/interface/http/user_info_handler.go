package handler

import (
	"Mano/internal/modules/user/application/dto/request"
	"Mano/internal/modules/user/application/service"
	"Mano/pkg/back"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"github.com/gin-gonic/gin"
)

type UserInfoHandler struct {
	svc service.UserInfoService
}

func NewUserInfoHandler(svc service.UserInfoService) *UserInfoHandler {
	return &UserInfoHandler{svc: svc}
}

func (h *UserInfoHandler) Login(c *gin.Context) {
	var loginReq request.LoginRequest
	if err := c.BindJSON(&loginReq); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Login(loginReq)
	back.Result(c, data, err)
}

func (h *UserInfoHandler) Register(c *gin.Context) {
	var registerReq request.RegisterRequest
	if err := c.BindJSON(&registerReq); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Register(registerReq)
	back.Result(c, data, err)
}

// Ping 校验当前 token 并回显身份
func (h *UserInfoHandler) Ping(c *gin.Context) {
	back.Success(c, gin.H{
		"uuid":     c.GetString("uuid"),
		"username": c.GetString("username"),
	})
}
