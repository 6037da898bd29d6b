package handler

import (
	"io"

	"Mano/internal/modules/chat/application/dto/request"
	"Mano/internal/modules/chat/application/service"
	"Mano/pkg/back"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"github.com/gin-gonic/gin"
)

// 上传附件大小上限 10MB
const maxUploadBytes = 10 << 20

type MessageHandler struct {
	msgSvc  service.MessageService
	fileSvc service.FileService
}

func NewMessageHandler(msgSvc service.MessageService, fileSvc service.FileService) *MessageHandler {
	return &MessageHandler{msgSvc: msgSvc, fileSvc: fileSvc}
}

func (h *MessageHandler) GetMessageList(c *gin.Context) {
	var req request.GetMessageListRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.msgSvc.GetMessageList(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

func (h *MessageHandler) GetMessageFiles(c *gin.Context) {
	var req request.GetMessageFilesRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.msgSvc.GetMessageFiles(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

// UploadFile multipart 表单：file + messageId
func (h *MessageHandler) UploadFile(c *gin.Context) {
	messageID := c.PostForm("messageId")
	if messageID == "" {
		back.Error(c, xerr.BadRequest, "messageId is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, "file is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		back.Error(c, xerr.BadRequest, "file too large")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.InternalServerError, xerr.ErrServerError.Message)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.InternalServerError, xerr.ErrServerError.Message)
		return
	}

	resp, err := h.fileSvc.UploadFile(
		c.Request.Context(),
		c.GetString("uuid"),
		messageID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		data,
	)
	back.Result(c, resp, err)
}
