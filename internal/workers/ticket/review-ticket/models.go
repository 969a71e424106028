// internal/workers/ticket/review-ticket/models.go
package reviewticket

type Input struct {
	TicketID   string `json:"ticketId"`
	Decision   string `json:"decision"`
	ReviewerID string `json:"reviewerId"`
}

type Output struct {
	TicketID        string `json:"ticketId"`
	TicketStatus    string `json:"ticketStatus"`
	ApplicantStatus string `json:"applicantStatus"`
	ReviewedAt      string `json:"reviewedAt"` // ISO 8601
}
