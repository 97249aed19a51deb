package handlers

import telebot "gopkg.in/telebot.v3"

// NewPingHandler answers /ping.
func NewPingHandler(texts Texts) Handler {
	return func(c telebot.Context) error {
		return c.Send(texts.Text(Context(c), "common.pong"))
	}
}
