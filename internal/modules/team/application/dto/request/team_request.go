package request

type CreatePersonRequest struct {
	Name             string `json:"name" binding:"required"`
	Role             string `json:"role"`
	RelationshipType string `json:"relationshipType"`
}

type UpdatePersonRequest struct {
	PersonId         string `json:"personId" binding:"required"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	RelationshipType string `json:"relationshipType"`
}

type DeletePersonRequest struct {
	PersonId string `json:"personId" binding:"required"`
}

type CreateTopicRequest struct {
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	Participants []string `json:"participants"`
}

type ArchiveTopicRequest struct {
	TopicId string `json:"topicId" binding:"required"`
}
