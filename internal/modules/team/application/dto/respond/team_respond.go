package respond

type PersonItem struct {
	PersonId         string `json:"personId"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	RelationshipType string `json:"relationshipType"`
	CreatedAt        string `json:"createdAt"`
}

type TopicItem struct {
	TopicId      string   `json:"topicId"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	Participants []string `json:"participants"`
	CreatedAt    string   `json:"createdAt"`
}
