package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/studio-booking-bot/internal/bot/handlers"
	"github.com/Proton-105/studio-booking-bot/internal/domain"
)

func TestInfo_Route(t *testing.T) {
	t.Run("with coordinates", func(t *testing.T) {
		f := newFixture(t)
		f.content.settings = domain.Settings{Address: "Москва, ул. Ленина 1", Latitude: "55.75", Longitude: "37.61"}

		f.tap(t, 1, "route")

		assert.Equal(t, []string{"answerCallbackQuery", "deleteMessage", "sendLocation", "sendMessage"}, f.api.methods())
		assert.Equal(t, []string{
			"info.route address=Москва, ул. Ленина 1\n" +
				"info.map_yandex url=https://yandex.ru/maps/?pt=37.61,55.75&z=16&l=map\n" +
				"info.map_google url=https://maps.google.com/?q=55.75,37.61",
		}, f.api.texts())
		assert.Contains(t, markupOf(f.api.last("sendMessage")), `"callback_data":"home"`)
	})

	t.Run("without address", func(t *testing.T) {
		f := newFixture(t)
		f.tap(t, 1, "route")

		assert.NotContains(t, f.api.methods(), "sendLocation")
		assert.Equal(t, []string{"info.route address=info.address_missing"}, f.api.texts())
	})
}

func TestInfo_About(t *testing.T) {
	f := newFixture(t)
	f.content.masters = []domain.Master{
		{ID: "7", Name: "Олег", Avatar: "/uploads/oleg.jpg", Active: true},
		{ID: "8", Name: "Аня", Nickname: "ink", Specialization: "Blackwork", TeletypeURL: "https://teletype.in/@anya", Active: true},
		{ID: "9", Name: "Гость", Active: false},
	}
	f.media["/uploads/oleg.jpg"] = "jpeg"

	f.tap(t, 1, "about")

	assert.Equal(t, []string{"answerCallbackQuery", "deleteMessage", "sendPhoto", "sendMessage", "sendMessage"}, f.api.methods())
	assert.Equal(t, []string{"*Аня*\n@ink\ninfo.master_styles styles=Blackwork", "info.masters_footer"}, f.api.texts())
}

func TestInfo_AboutWithoutMasters(t *testing.T) {
	f := newFixture(t)
	f.content.masters = []domain.Master{{ID: "9", Name: "Гость", Active: false}}

	f.tap(t, 1, "about")

	assert.Equal(t, []string{"info.no_masters"}, f.api.texts())
}

func TestInfo_Portfolio(t *testing.T) {
	f := newFixture(t)
	f.content.masters = []domain.Master{{ID: "7", Name: "Олег", Active: true}}
	f.content.portfolio = []domain.PortfolioItem{
		{ID: "1", MasterID: "7", Style: "Blackwork", URL: "/w/1.jpg"},
		{ID: "2", MasterID: "7", Style: " Blackwork ", URL: "/w/2.jpg"},
		{ID: "3", MasterID: "7", Style: "Realism", URL: "/w/3.jpg"},
		{ID: "4", MasterID: "8", Style: "Dotwork", URL: "/w/4.jpg"},
		{ID: "5", MasterID: "7", Style: "", URL: "/w/5.jpg"},
	}

	f.tap(t, 1, "portfolio:7")

	assert.Equal(t, []string{"info.choose_style master=Олег"}, f.api.texts())
	markup := markupOf(f.api.last("sendMessage"))
	assert.Contains(t, markup, `"callback_data":"style:7:Blackwork"`)
	assert.Contains(t, markup, `"callback_data":"style:7:Realism"`)
	assert.Contains(t, markup, `"callback_data":"about"`)
	assert.NotContains(t, markup, "Dotwork")
}

func TestInfo_PortfolioWithoutStyles(t *testing.T) {
	f := newFixture(t)
	f.tap(t, 1, "portfolio:7")

	assert.Equal(t, []string{"info.no_styles"}, f.api.texts())
}

func TestInfo_Style(t *testing.T) {
	portfolio := []domain.PortfolioItem{
		{ID: "1", MasterID: "7", Style: "Realism", URL: "/w/1.jpg", Title: "Портрет"},
		{ID: "2", MasterID: "7", Style: "Realism", URL: "/w/2.mp4", MediaType: "video"},
		{ID: "3", MasterID: "7", Style: "Realism", URL: "/w/missing.jpg"},
		{ID: "4", MasterID: "7", Style: "Blackwork", URL: "/w/4.jpg"},
	}

	t.Run("sends the works that could be downloaded", func(t *testing.T) {
		f := newFixture(t)
		f.content.portfolio = portfolio
		f.media["/w/1.jpg"] = "jpeg"
		f.media["/w/2.mp4"] = "mp4"

		f.tap(t, 1, "style:7:Realism")

		assert.Equal(t, []string{"answerCallbackQuery", "deleteMessage", "sendPhoto", "sendVideo", "sendMessage"}, f.api.methods())
		assert.Equal(t, []string{"info.works_footer"}, f.api.texts())
	})

	t.Run("style by index", func(t *testing.T) {
		f := newFixture(t)
		f.content.portfolio = portfolio
		f.media["/w/4.jpg"] = "jpeg"

		f.tap(t, 1, "style:7:#1")

		assert.Contains(t, f.api.methods(), "sendPhoto")
		assert.Equal(t, []string{"info.works_footer"}, f.api.texts())
	})

	t.Run("nothing could be sent", func(t *testing.T) {
		f := newFixture(t)
		f.content.portfolio = portfolio

		f.tap(t, 1, "style:7:Realism")

		assert.Equal(t, []string{"info.works_failed"}, f.api.texts())
	})

	t.Run("unknown style", func(t *testing.T) {
		f := newFixture(t)
		f.content.portfolio = portfolio

		f.tap(t, 1, "style:7:Dotwork")

		assert.Equal(t, []string{"info.no_works"}, f.api.texts())
	})
}

func TestInfo_Certs(t *testing.T) {
	t.Run("album", func(t *testing.T) {
		f := newFixture(t)
		f.content.settings = domain.Settings{Certificates: []string{"/c/1.jpg", "/c/2.jpg", "/c/missing.jpg"}}
		f.media["/c/1.jpg"] = "jpeg"
		f.media["/c/2.jpg"] = "jpeg"

		f.tap(t, 1, "certs")

		assert.Equal(t, []string{"answerCallbackQuery", "deleteMessage", "sendMediaGroup", "sendMessage"}, f.api.methods())
		assert.Equal(t, []string{"info.certs_footer"}, f.api.texts())
	})

	t.Run("none uploaded", func(t *testing.T) {
		f := newFixture(t)
		f.tap(t, 1, "certs")

		assert.Equal(t, []string{"info.no_certs"}, f.api.texts())
	})
}

func TestInfo_Pay(t *testing.T) {
	f := newFixture(t)
	f.tap(t, 1, "pay")

	f.content.settings = domain.Settings{PaymentInfo: "Только наличные"}
	f.tap(t, 1, "pay")

	assert.Equal(t, []string{"info.payment", "Только наличные"}, f.api.texts())
	sent := f.api.last("sendMessage")
	require.NotNil(t, sent)
	assert.Equal(t, "Markdown", sent["parse_mode"])
}

func TestInfo_Detail(t *testing.T) {
	f := newFixture(t)
	f.content.masters = []domain.Master{{ID: "7", Name: "Олег", Specialization: "Realism", Active: true}}

	f.tap(t, 1, "detail:7")

	assert.Equal(t, []string{"answerCallbackQuery", "editMessageText"}, f.api.methods())
	assert.Equal(t, []string{"*Олег*\ninfo.master_styles styles=Realism"}, f.api.texts())
	assert.Contains(t, markupOf(f.api.last("editMessageText")), `"callback_data":"portfolio:7"`)
}

func TestStylesAndWorks(t *testing.T) {
	items := []domain.PortfolioItem{
		{MasterID: "1", Style: "B", URL: "/1"},
		{MasterID: "1", Style: "A", URL: "/2"},
		{MasterID: "1", Style: "B ", URL: "/3"},
		{MasterID: "1", Style: "A", URL: ""},
		{MasterID: "2", Style: "C", URL: "/4"},
	}

	assert.Equal(t, []string{"B", "A"}, handlers.Styles(items, "1"))
	assert.Empty(t, handlers.Styles(items, "3"))
	assert.Len(t, handlers.Works(items, "1", "B"), 2)
	assert.Len(t, handlers.Works(items, "1", "A"), 1)
}
