package handler

import (
	"time"

	"Mano/internal/modules/team/application/dto/request"
	"Mano/internal/modules/team/application/dto/respond"
	"Mano/internal/modules/team/application/service"
	"Mano/pkg/back"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"github.com/gin-gonic/gin"
)

type TeamHandler struct {
	svc service.TeamService
}

func NewTeamHandler(svc service.TeamService) *TeamHandler {
	return &TeamHandler{svc: svc}
}

func (h *TeamHandler) CreatePerson(c *gin.Context) {
	var req request.CreatePersonRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.CreatePerson(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

func (h *TeamHandler) GetPersonList(c *gin.Context) {
	data, err := h.svc.GetPersonList(c.Request.Context(), c.GetString("uuid"))
	back.Result(c, data, err)
}

func (h *TeamHandler) UpdatePerson(c *gin.Context) {
	var req request.UpdatePersonRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.UpdatePerson(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

func (h *TeamHandler) DeletePerson(c *gin.Context) {
	var req request.DeletePersonRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	err := h.svc.DeletePerson(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, nil, err)
}

func (h *TeamHandler) CreateTopic(c *gin.Context) {
	var req request.CreateTopicRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.CreateTopic(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

func (h *TeamHandler) GetTopicList(c *gin.Context) {
	data, err := h.svc.GetTopicList(c.Request.Context(), c.GetString("uuid"))
	back.Result(c, data, err)
}

func (h *TeamHandler) GetGeneralTopic(c *gin.Context) {
	topic, err := h.svc.GetOrCreateGeneralTopic(c.Request.Context(), c.GetString("uuid"))
	if err != nil {
		back.Result(c, nil, err)
		return
	}
	back.Result(c, respond.TopicItem{
		TopicId:      topic.TopicId,
		Title:        topic.Title,
		Description:  topic.Description,
		Status:       topic.Status,
		Participants: []string{},
		CreatedAt:    topic.CreatedAt.Format(time.RFC3339),
	}, nil)
}

func (h *TeamHandler) ArchiveTopic(c *gin.Context) {
	var req request.ArchiveTopicRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	err := h.svc.ArchiveTopic(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, nil, err)
}
