package domain

// Ticket is derived from a ticket channel; it is never stored on its own.
type Ticket struct {
	ChannelID   string
	GuildID     string
	ChannelName string
	OwnerUserID string
	Title       string
	// Number is display-only and may collide under concurrent opens.
	Number int
}

// TicketDetails is the identity encoded in a ticket channel topic.
type TicketDetails struct {
	OwnerUserID string
	Title       string
}

// CloseResult is the outcome of a close attempt.
type CloseResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	LogsURL string `json:"logs_url,omitempty"`
}

// Close result messages surfaced to callers.
const (
	CloseMessageSuccess            = "success"
	CloseMessageMissingPermissions = "Missing permissions"
	CloseMessageNotATicket         = "Not a ticket channel"
	CloseMessageAlreadyClosed      = "Ticket already closed"
	CloseMessageUnexpected         = "Unexpected error occurred"
)

// BulkCloseResult tallies a close-all run.
type BulkCloseResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ForceCloseReason is attached to every ticket closed by a close-all.
const ForceCloseReason = "Force close all open tickets"
