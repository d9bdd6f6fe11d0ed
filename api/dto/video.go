package dto

type VideoResponse struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	UserID   int64    `json:"user_id"`
	Filename string   `json:"filename"`
	URL      string   `json:"url"`
	Score    *float64 `json:"score"`
}
