package api

type PublishRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

type PublishResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
