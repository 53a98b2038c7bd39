package models

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	UserType string `json:"user_type"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type CreateJobRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type EditJobRequest struct {
	Title        *string       `json:"title,omitempty"`
	Description  *string       `json:"description,omitempty"`
	RatingSchema *RatingSchema `json:"rating_schema,omitempty"`
	WeightMap    *WeightMap    `json:"weight_map,omitempty"`
}

type MatchEntry struct {
	ResumeID      string             `json:"resume_id"`
	CandidateName string             `json:"candidate_name"`
	Ratings       map[string]float64 `json:"ratings"`
	Score         float64            `json:"score"`
}

type SkippedCandidate struct {
	ResumeID string `json:"resume_id"`
	Reason   string `json:"reason"`
}

type MatchesResponse struct {
	JobID   string             `json:"job_id"`
	Matches []MatchEntry       `json:"matches"`
	Skipped []SkippedCandidate `json:"skipped,omitempty"`
}

type ResumeUploadResponse struct {
	ID            string `json:"id"`
	CandidateName string `json:"candidate_name"`
	OriginalName  string `json:"original_name"`
}
