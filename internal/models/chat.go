package models

// SendMessageRequest is the body for POST /api/chat/:id/message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// RegisterRequest is the body for POST /api/users/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	DOB      string `json:"dob"`
}

// LoginRequest is the body for POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
