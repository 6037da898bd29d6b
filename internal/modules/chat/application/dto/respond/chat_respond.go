package respond

type MessageItem struct {
	MessageId string `json:"messageId"`
	Content   string `json:"content"`
	IsUser    bool   `json:"isUser"`
	PersonId  string `json:"personId,omitempty"`
	TopicId   string `json:"topicId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type MessageFileItem struct {
	FileId           string `json:"fileId"`
	MessageId        string `json:"messageId"`
	OriginalName     string `json:"originalName"`
	FileType         string `json:"fileType"`
	ContentType      string `json:"contentType"`
	ProcessingStatus string `json:"processingStatus"`
	ExtractedContent string `json:"extractedContent,omitempty"`
}

type UploadFileRespond struct {
	FileId           string `json:"fileId"`
	MessageId        string `json:"messageId"`
	ProcessingStatus string `json:"processingStatus"`
}
