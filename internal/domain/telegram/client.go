package telegram

// Client sends plain text messages to a chat.
// It keeps the application layer independent of the bot library.
type Client interface {
	SendText(recipientChatID int64, text string) error
}
