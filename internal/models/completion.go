// internal/models/completion.go
package models

type Completion struct {
	TotalQuestions int     `json:"totalQuestions"`
	AnsweredCount  int     `json:"answeredCount"`
	AllAnswered    bool    `json:"allAnswered"`
	HasTicket      bool    `json:"hasTicket"`
	TicketStatus   *Status `json:"ticketStatus"`
	CanSubmit      bool    `json:"canSubmit"`
}
