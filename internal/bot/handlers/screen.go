package handlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
	"github.com/Proton-105/studio-booking-bot/internal/bot/keyboard"
)

const welcomeKey = "welcome"

// Screen puts prompts, menus and media in front of the user.
type Screen struct {
	texts   Templates
	content Content
	media   MediaFetcher
	kb      *keyboard.Builder
	log     *slog.Logger
}

// NewScreen constructs a Screen. media may be nil, then photos are skipped.
func NewScreen(texts Templates, content Content, media MediaFetcher, kb *keyboard.Builder, log *slog.Logger) *Screen {
	if log == nil {
		log = slog.Default()
	}

	return &Screen{
		texts:   texts,
		content: content,
		media:   media,
		kb:      kb,
		log:     log,
	}
}

// Keyboard exposes the keyboard builder.
func (s *Screen) Keyboard() *keyboard.Builder {
	return s.kb
}

// Home shows the welcome message under the main menu, as a photo when the welcome
// template carries an image.
func (s *Screen) Home(c telebot.Context) error {
	ctx := Context(c)
	text := s.welcome(ctx)
	markup := s.kb.MainMenu(ctx)

	if image := s.texts.Image(ctx, welcomeKey); image != "" {
		s.Clear(c)
		if err := s.Photo(c, image, text, markup, true); err == nil {
			return nil
		}
	}
	return s.Show(c, text, markup, true)
}

// Prompt renders a booking prompt. A prompt without text means the main screen.
func (s *Screen) Prompt(c telebot.Context, p booking.Prompt) error {
	if p.Text == "" && p.Home {
		return s.Home(c)
	}
	return s.Show(c, p.Text, s.kb.FromPrompt(Context(c), p), p.Markdown)
}

// Show replaces the tapped text message in place, or sends a new message when there
// is nothing to edit.
func (s *Screen) Show(c telebot.Context, text string, markup *telebot.ReplyMarkup, markdown bool) error {
	if cb := c.Callback(); cb != nil {
		s.answer(c)

		if cb.Message != nil && cb.Message.Text != "" && c.Get(deletedKey) == nil {
			err := c.Edit(text, options(markup, markdown))
			if err == nil || errors.Is(err, telebot.ErrSameMessageContent) || errors.Is(err, telebot.ErrMessageNotModified) {
				return nil
			}
			s.log.DebugContext(Context(c), "edit failed, sending a new message", slog.Any("error", err))
		} else {
			s.Clear(c)
		}
	}
	return s.Send(c, text, markup, markdown)
}

// Send sends a new message. Markdown Telegram refuses to parse is resent as plain text.
func (s *Screen) Send(c telebot.Context, text string, markup *telebot.ReplyMarkup, markdown bool) error {
	err := c.Send(text, options(markup, markdown))
	if err != nil && markdown {
		s.log.WarnContext(Context(c), "markdown message rejected, resending as plain text", slog.Any("error", err))
		err = c.Send(text, options(markup, false))
	}
	return err
}

// Clear answers the tapped button and removes the message it belonged to.
func (s *Screen) Clear(c telebot.Context) {
	if c.Callback() == nil {
		return
	}
	s.answer(c)
	if c.Message() == nil || c.Get(deletedKey) != nil {
		return
	}
	c.Set(deletedKey, true)
	if err := c.Delete(); err != nil {
		s.log.DebugContext(Context(c), "failed to delete message", slog.Any("error", err))
	}
}

// Photo downloads url and sends it with a caption. A Markdown caption Telegram refuses
// to parse is resent as plain text.
func (s *Screen) Photo(c telebot.Context, url, caption string, markup *telebot.ReplyMarkup, markdown bool) error {
	ctx := Context(c)
	media, err := s.fetch(ctx, url)
	if err != nil {
		return err
	}

	send := func(markdown bool) error {
		photo := &telebot.Photo{File: telebot.FromReader(bytes.NewReader(media)), Caption: caption}
		return c.Send(photo, options(markup, markdown))
	}

	err = send(markdown)
	if err != nil && markdown {
		err = send(false)
	}
	if err != nil {
		s.log.WarnContext(ctx, "failed to send photo", slog.String("url", url), slog.Any("error", err))
	}
	return err
}

// Video downloads url and sends it as a streamable video.
func (s *Screen) Video(c telebot.Context, url, caption string) error {
	ctx := Context(c)
	media, err := s.fetch(ctx, url)
	if err != nil {
		return err
	}

	video := &telebot.Video{File: telebot.FromReader(bytes.NewReader(media)), Caption: caption, Streaming: true}
	if err := c.Send(video); err != nil {
		s.log.WarnContext(ctx, "failed to send video", slog.String("url", url), slog.Any("error", err))
		return err
	}
	return nil
}

// Album sends up to ten photos as one group and returns how many were included.
// When the group is refused the photos are sent one by one.
func (s *Screen) Album(c telebot.Context, urls []string) int {
	ctx := Context(c)

	var album telebot.Album
	for _, url := range urls {
		if len(album) == maxAlbumSize {
			break
		}
		media, err := s.fetch(ctx, url)
		if err != nil {
			continue
		}
		album = append(album, &telebot.Photo{File: telebot.FromReader(bytes.NewReader(media))})
	}
	if len(album) == 0 {
		return 0
	}

	if err := c.SendAlbum(album); err != nil {
		s.log.WarnContext(ctx, "album refused, sending photos one by one", slog.Any("error", err))
		sent := 0
		for _, item := range album {
			if err := c.Send(item); err == nil {
				sent++
			}
		}
		return sent
	}
	return len(album)
}

func (s *Screen) fetch(ctx context.Context, url string) ([]byte, error) {
	if s.media == nil {
		return nil, errors.New("media downloads are disabled")
	}

	media, err := s.media.FetchMedia(ctx, url)
	if err != nil {
		s.log.WarnContext(ctx, "media unavailable", slog.String("url", url), slog.Any("error", err))
		return nil, err
	}
	return media.Data, nil
}

func (s *Screen) welcome(ctx context.Context) string {
	if text := s.texts.Remote(ctx, welcomeKey); text != "" {
		return text
	}
	if s.content != nil {
		settings, err := s.content.GetSettings(ctx)
		if err != nil {
			s.log.WarnContext(ctx, "settings unavailable for welcome", slog.Any("error", err))
		} else if settings.WelcomeText != "" {
			return settings.WelcomeText
		}
	}
	return s.texts.Text(ctx, welcomeKey)
}

// answer acknowledges the tapped button once per update.
func (s *Screen) answer(c telebot.Context) {
	if c.Get(answeredKey) != nil {
		return
	}
	c.Set(answeredKey, true)
	if err := c.Respond(); err != nil {
		s.log.DebugContext(Context(c), "failed to answer callback", slog.Any("error", err))
	}
}

const (
	maxAlbumSize = 10
	answeredKey  = "callback_answered"
	deletedKey   = "message_deleted"
)

func options(markup *telebot.ReplyMarkup, markdown bool) *telebot.SendOptions {
	opts := &telebot.SendOptions{ReplyMarkup: markup}
	if markdown {
		opts.ParseMode = telebot.ModeMarkdown
	}
	return opts
}
