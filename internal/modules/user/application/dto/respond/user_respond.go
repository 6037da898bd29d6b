package respond

type RegisterRespond struct {
	Uuid     string `json:"uuid"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type LoginRespond struct {
	Uuid     string `json:"uuid"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}
