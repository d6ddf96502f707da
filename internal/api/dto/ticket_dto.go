package dto

import (
	"github.com/support-relay/relay/internal/domain"
)

// TicketActionRequest is the body of claim and close requests.
type TicketActionRequest struct {
	TicketID string `json:"ticketId"`
}

// CreateTicketResponse response.
type CreateTicketResponse struct {
	TicketID string `json:"ticketId"`
}

// TicketListResponse response.
type TicketListResponse struct {
	Tickets []domain.TicketSummary `json:"tickets"`
}

// OKResponse acknowledges a mutation.
type OKResponse struct {
	OK bool `json:"ok"`
}
