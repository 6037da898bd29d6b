package request

// ChatStreamRequest 一次流式聊天回合的请求体，JSON 键与前端契约保持一致
type ChatStreamRequest struct {
	PersonId            string `json:"person_id"`
	Message             string `json:"message" binding:"required"`
	TopicId             string `json:"topicId"`
	HasFiles            bool   `json:"hasFiles"`
	IsTopicConversation bool   `json:"isTopicConversation"`
	TopicTitle          string `json:"topicTitle"`
}
