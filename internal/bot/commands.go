package bot

import (
	"strings"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
	"github.com/Proton-105/studio-booking-bot/internal/bot/keyboard"
)

// Command constants for Telegram bot commands.
const (
	CommandStart  = "/start"
	CommandBook   = "/book"
	CommandCancel = "/cancel"
	CommandPing   = "/ping"
)

// Callback routes. Keys ending with the separator match by prefix.
const (
	CallbackBook      = booking.ActionBook
	CallbackHome      = booking.ActionHome
	CallbackBack      = booking.ActionBack
	CallbackService   = booking.PrefixService
	CallbackDate      = booking.PrefixDate
	CallbackTime      = booking.PrefixTime
	CallbackMaster    = booking.PrefixMaster
	CallbackRoute     = keyboard.CallbackRoute
	CallbackAbout     = keyboard.CallbackAbout
	CallbackCerts     = keyboard.CallbackCerts
	CallbackPay       = keyboard.CallbackPay
	CallbackPortfolio = keyboard.CallbackPortfolio + keyboard.CallbackDataSeparator
	CallbackStyle     = keyboard.CallbackStyle + keyboard.CallbackDataSeparator
	CallbackDetail    = keyboard.CallbackDetail + keyboard.CallbackDataSeparator
)

// parseCommand returns the command of a message such as "/book@studio_bot now", or
// an empty string for plain text.
func parseCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}

	command, _, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command)
}
