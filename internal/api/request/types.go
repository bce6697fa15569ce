package request

// RegisterRequest is the request body for registering an account
type RegisterRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	RepeatPassword string `json:"repeat_password"`
	Email          string `json:"email"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// DeleteAccountRequest is the request body for deleting an account.
// Both fields are required so a stolen token alone cannot delete it.
type DeleteAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// JoinSessionRequest is the request body for joining a session
type JoinSessionRequest struct {
	DisplayName string `json:"display_name"`
}

// ActionRequest is the request body for submitting a move
type ActionRequest struct {
	Action string `json:"action"`
}
