package dto

// RegisterModeratorRequest payload.
type RegisterModeratorRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

// RegisterModeratorResponse response.
type RegisterModeratorResponse struct {
	Token       string `json:"token"`
	DisplayName string `json:"displayName"`
}
