package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
	"github.com/Proton-105/studio-booking-bot/internal/bot/keyboard"
	"github.com/Proton-105/studio-booking-bot/internal/domain"
)

const (
	maxMasterCards = 10
	maxWorks       = 5
)

// Info serves the informational branches of the main menu.
type Info struct {
	content Content
	screen  *Screen
	texts   Texts
	log     *slog.Logger
}

// NewInfo constructs the informational handlers.
func NewInfo(content Content, screen *Screen, texts Texts, log *slog.Logger) *Info {
	if log == nil {
		log = slog.Default()
	}

	return &Info{
		content: content,
		screen:  screen,
		texts:   texts,
		log:     log,
	}
}

// Route shows the studio address with map links and a location pin.
func (h *Info) Route(c telebot.Context) error {
	ctx := Context(c)
	settings := h.settings(ctx)
	h.screen.Clear(c)

	address := strings.TrimSpace(settings.Address)
	if address == "" {
		address = h.texts.Text(ctx, "info.address_missing")
	}
	parts := []string{h.texts.Render(ctx, "info.route", map[string]string{"address": booking.EscapeMarkdown(address)})}

	if lat, lng, ok := settings.Coordinates(); ok {
		latText, lngText := strings.TrimSpace(settings.Latitude), strings.TrimSpace(settings.Longitude)
		parts = append(parts,
			h.texts.Render(ctx, "info.map_yandex", map[string]string{"url": "https://yandex.ru/maps/?pt=" + lngText + "," + latText + "&z=16&l=map"}),
			h.texts.Render(ctx, "info.map_google", map[string]string{"url": "https://maps.google.com/?q=" + latText + "," + lngText}),
		)

		if err := c.Send(&telebot.Location{Lat: float32(lat), Lng: float32(lng)}); err != nil {
			h.log.WarnContext(ctx, "failed to send location", slog.Any("error", err))
		}
	}

	return h.screen.Send(c, strings.Join(parts, "\n"), h.screen.Keyboard().BackHome(ctx), true)
}

// About introduces the active masters, one card each.
func (h *Info) About(c telebot.Context) error {
	ctx := Context(c)
	masters := domain.ActiveMasters(h.masters(ctx))
	kb := h.screen.Keyboard()
	h.screen.Clear(c)

	if len(masters) == 0 {
		return h.screen.Send(c, h.texts.Text(ctx, "info.no_masters"), kb.BackHome(ctx), false)
	}
	if len(masters) > maxMasterCards {
		masters = masters[:maxMasterCards]
	}

	for _, m := range masters {
		caption := h.masterCaption(ctx, m)
		markup := kb.MasterCard(ctx, m.ID.String(), m.TeletypeURL)

		if m.Avatar != "" && h.screen.Photo(c, m.Avatar, caption, markup, true) == nil {
			continue
		}
		if err := h.screen.Send(c, caption, markup, true); err != nil {
			h.log.WarnContext(ctx, "failed to send master card", slog.String("master_id", m.ID.String()), slog.Any("error", err))
		}
	}

	return h.screen.Send(c, h.texts.Text(ctx, "info.masters_footer"), kb.BackHome(ctx), false)
}

// Detail shows one master's description when they have no page of their own.
func (h *Info) Detail(c telebot.Context) error {
	ctx := Context(c)
	master, ok := h.findMaster(ctx, callbackArg(c, keyboard.CallbackDetail))
	if !ok {
		return h.screen.Show(c, h.texts.Text(ctx, "info.no_masters"), h.screen.Keyboard().BackHome(ctx), false)
	}
	return h.screen.Show(c, h.masterCaption(ctx, master), h.screen.Keyboard().MasterDetail(ctx, master.ID.String()), true)
}

// Portfolio lets the user pick one of the styles a master has works in.
func (h *Info) Portfolio(c telebot.Context) error {
	ctx := Context(c)
	masterID := callbackArg(c, keyboard.CallbackPortfolio)
	kb := h.screen.Keyboard()

	styles := Styles(h.portfolio(ctx), domain.ID(masterID))
	if len(styles) == 0 {
		h.screen.Clear(c)
		return h.screen.Send(c, h.texts.Text(ctx, "info.no_styles"), kb.BackHome(ctx), false)
	}

	name := ""
	if master, ok := h.findMaster(ctx, masterID); ok {
		name = master.Name
	}

	h.screen.Clear(c)
	text := h.texts.Render(ctx, "info.choose_style", map[string]string{"master": name})
	return h.screen.Send(c, text, kb.Styles(ctx, masterID, styles), false)
}

// Style sends up to five works of a master in one style.
func (h *Info) Style(c telebot.Context) error {
	ctx := Context(c)
	kb := h.screen.Keyboard()
	h.screen.Clear(c)

	masterID, style, _ := strings.Cut(callbackArg(c, keyboard.CallbackStyle), keyboard.CallbackDataSeparator)
	items := h.portfolio(ctx)

	if index, ok := strings.CutPrefix(style, keyboard.StyleIndexPrefix); ok {
		styles := Styles(items, domain.ID(masterID))
		i, err := strconv.Atoi(index)
		if err != nil || i < 0 || i >= len(styles) {
			return h.screen.Send(c, h.texts.Text(ctx, "info.no_works"), kb.BackHome(ctx), false)
		}
		style = styles[i]
	}

	works := Works(items, domain.ID(masterID), style)
	if len(works) == 0 {
		return h.screen.Send(c, h.texts.Text(ctx, "info.no_works"), kb.BackHome(ctx), false)
	}
	if len(works) > maxWorks {
		works = works[:maxWorks]
	}

	sent := 0
	for _, work := range works {
		caption := strings.TrimSpace(work.Title)
		if caption == "" {
			caption = style
		}

		var err error
		if work.IsVideo() {
			err = h.screen.Video(c, work.URL, caption)
		} else {
			err = h.screen.Photo(c, work.URL, caption, nil, false)
		}
		if err == nil {
			sent++
		}
	}

	if sent == 0 {
		return h.screen.Send(c, h.texts.Text(ctx, "info.works_failed"), kb.BackHome(ctx), false)
	}
	return h.screen.Send(c, h.texts.Text(ctx, "info.works_footer"), kb.BackHome(ctx), false)
}

// Certs sends the studio certificates as an album.
func (h *Info) Certs(c telebot.Context) error {
	ctx := Context(c)
	settings := h.settings(ctx)
	kb := h.screen.Keyboard()
	h.screen.Clear(c)

	if len(settings.Certificates) == 0 {
		return h.screen.Send(c, h.texts.Text(ctx, "info.no_certs"), kb.BackHome(ctx), false)
	}

	if sent := h.screen.Album(c, settings.Certificates); sent == 0 {
		h.log.WarnContext(ctx, "no certificate could be sent", slog.Int("count", len(settings.Certificates)))
	}
	return h.screen.Send(c, h.texts.Text(ctx, "info.certs_footer"), kb.BackHome(ctx), false)
}

// Pay shows the payment terms.
func (h *Info) Pay(c telebot.Context) error {
	ctx := Context(c)
	text := strings.TrimSpace(h.settings(ctx).PaymentInfo)
	if text == "" {
		text = h.texts.Text(ctx, "info.payment")
	}

	h.screen.Clear(c)
	return h.screen.Send(c, text, h.screen.Keyboard().BackHome(ctx), true)
}

func (h *Info) masterCaption(ctx context.Context, m domain.Master) string {
	lines := []string{"*" + booking.EscapeMarkdown(m.Name) + "*"}
	if m.Nickname != "" {
		lines = append(lines, "@"+booking.EscapeMarkdown(m.Nickname))
	}
	if m.Specialization != "" {
		lines = append(lines, h.texts.Render(ctx, "info.master_styles", map[string]string{"styles": booking.EscapeMarkdown(m.Specialization)}))
	}
	return strings.Join(lines, "\n")
}

func (h *Info) findMaster(ctx context.Context, id string) (domain.Master, bool) {
	for _, m := range h.masters(ctx) {
		if m.ID.String() == id {
			return m, true
		}
	}
	return domain.Master{}, false
}

func (h *Info) settings(ctx context.Context) domain.Settings {
	settings, err := h.content.GetSettings(ctx)
	if err != nil {
		h.log.WarnContext(ctx, "settings unavailable", slog.Any("error", err))
	}
	return settings
}

func (h *Info) masters(ctx context.Context) []domain.Master {
	masters, err := h.content.ListMasters(ctx)
	if err != nil {
		h.log.WarnContext(ctx, "masters unavailable", slog.Any("error", err))
	}
	return masters
}

func (h *Info) portfolio(ctx context.Context) []domain.PortfolioItem {
	items, err := h.content.ListPortfolio(ctx)
	if err != nil {
		h.log.WarnContext(ctx, "portfolio unavailable", slog.Any("error", err))
	}
	return items
}

// Styles returns the distinct styles of a master's works in order of first appearance.
func Styles(items []domain.PortfolioItem, masterID domain.ID) []string {
	seen := make(map[string]struct{})
	var styles []string
	for _, item := range items {
		style := strings.TrimSpace(item.Style)
		if item.MasterID != masterID || style == "" {
			continue
		}
		if _, ok := seen[style]; ok {
			continue
		}
		seen[style] = struct{}{}
		styles = append(styles, style)
	}
	return styles
}

// Works returns a master's works in one style.
func Works(items []domain.PortfolioItem, masterID domain.ID, style string) []domain.PortfolioItem {
	var works []domain.PortfolioItem
	for _, item := range items {
		if item.MasterID == masterID && strings.TrimSpace(item.Style) == style && item.URL != "" {
			works = append(works, item)
		}
	}
	return works
}

func callbackArg(c telebot.Context, unique string) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	got, data, err := keyboard.DecodeCallback(cb.Data)
	if err != nil || got != unique {
		return ""
	}
	return data
}
