package mail

// RenderedMessage is a fully rendered mail ready for transport. It knows
// nothing about the event that produced it.
type RenderedMessage struct {
	Recipient string
	Subject   string
	Body      string
}

// NewRenderedMessage builds a message for a single recipient with an HTML body.
func NewRenderedMessage(recipient, subject, body string) RenderedMessage {
	return RenderedMessage{Recipient: recipient, Subject: subject, Body: body}
}
