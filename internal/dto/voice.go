package dto

type StartSessionRequest struct {
	UserID string `json:"user_id"`
}

type StopSessionResponse struct {
	SessionID string `json:"session_id"`
	Stopped   bool   `json:"stopped"`
}

type ToolListResponse struct {
	Tools []ToolInfo `json:"tools"`
}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
