package quotes

import (
	"fmt"
	"strings"
)

// Status is the sale.order state as stored by the ERP.
type Status string

// Remote state values.
const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusConfirmed Status = "sale"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancel"
)

// ParseStatus accepts the remote state names and their readable aliases.
// The empty string means "any status".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "draft":
		return StatusDraft, nil
	case "sent":
		return StatusSent, nil
	case "sale", "confirmed":
		return StatusConfirmed, nil
	case "done":
		return StatusDone, nil
	case "cancel", "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown quote status %q", s)
	}
}

// Label returns the human-readable name of s, or s itself when unknown.
func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusSent:
		return "Sent"
	case StatusConfirmed:
		return "Confirmed"
	case StatusDone:
		return "Done"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// Quote is a sale.order as shown to agents. Every field has a usable zero value.
type Quote struct {
	ID          int
	Name        string
	PartnerID   int
	PartnerName string
	DateOrder   string
	AmountTotal float64
	State       Status
	Note        string
}

// Line is a sale.order.line.
type Line struct {
	ID          int
	QuoteID     int
	ProductID   int
	ProductName string
	Description string
	Quantity    float64
	PriceUnit   float64
	Subtotal    float64
}

// Customer is a company partner quotes can be addressed to.
type Customer struct {
	ID    int
	Name  string
	Email string
	Phone string
	VAT   string
}

// ListParams selects a page of an agent's quotes.
type ListParams struct {
	Agent  string
	Page   int // 1-based
	Limit  int // 0 uses the configured page size
	Search string
	Status Status
}

// NewQuote holds the values of a quote to create.
type NewQuote struct {
	PartnerID int
	DateOrder string // "2006-01-02 15:04:05"; empty lets the ERP default it
	Note      string
	Agent     string
}

// QuoteChanges lists the fields to update; nil fields are left untouched.
type QuoteChanges struct {
	PartnerID *int
	DateOrder *string
	Note      *string
}

// LineInput describes a line to add to a quote.
type LineInput struct {
	QuoteID     int
	ProductName string
	Description string
	Quantity    float64
	PriceUnit   float64
}
