package workflow

import "strings"

// Command - пункт меню команд бота
type Command struct {
	Name        string `json:"command"`
	Description string `json:"description"`
}

// Commands регистрируются в меню при старте
var Commands = []Command{
	{Name: "order", Description: "Create a new 3D print order"},
	{Name: "register", Description: "Register a new provider"},
	{Name: "response", Description: "Respond to an order"},
	{Name: "choose", Description: "Choose a provider for your order"},
	{Name: "reset", Description: "Reset the bot session"},
}

const welcome = "Welcome! 👋\n\nI can help you:\n\n" +
	"• Register a new provider - use /register\n" +
	"• Create a print order - use /order\n" +
	"• Respond to an order - use /response <order_id>\n" +
	"• Choose a provider for your order - use /choose\n" +
	"• Cancel registration - use /cancel_registration\n" +
	"• Cancel order - use /cancel_order\n" +
	"• Reset session - use /reset"

const (
	resetDone = "✅ Session reset! You can start fresh now.\n\n" +
		"Use /register to add a new provider or /order to create a print order."
	fallback = "Please type /start to work with the bot."
)

// parseCommand разбирает "/name@bot arg". ok=false - это не команда
func parseCommand(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
