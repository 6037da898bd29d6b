package request

type GetMessageListRequest struct {
	PersonId string `json:"personId"`
	TopicId  string `json:"topicId"`
	Limit    int    `json:"limit"`
}

type GetMessageFilesRequest struct {
	MessageId string `json:"messageId" binding:"required"`
}
