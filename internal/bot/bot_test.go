package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
	"github.com/Proton-105/studio-booking-bot/internal/domain"
	"github.com/Proton-105/studio-booking-bot/internal/gateway"
	"github.com/Proton-105/studio-booking-bot/internal/state"
	"github.com/Proton-105/studio-booking-bot/internal/verification"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// telegramAPI records Bot API calls and answers each with a minimal message.
type telegramAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

type apiCall struct {
	Method string
	Params map[string]any
}

func (a *telegramAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&params)
	}

	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	a.mu.Lock()
	a.calls = append(a.calls, apiCall{Method: method, Params: params})
	a.mu.Unlock()

	switch method {
	case "sendMediaGroup":
		photo := `{"message_id":1,"chat":{"id":1},"photo":[{"file_id":"p","width":1,"height":1}]}`
		_, _ = w.Write([]byte(`{"ok":true,"result":[` + strings.TrimSuffix(strings.Repeat(photo+",", 10), ",") + `]}`))
	case "sendPhoto":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1},"photo":[{"file_id":"p","width":1,"height":1}]}}`))
	case "sendVideo":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1},"video":{"file_id":"v"}}}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`))
	}
}

func (a *telegramAPI) methods() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.calls))
	for _, c := range a.calls {
		out = append(out, c.Method)
	}
	return out
}

// texts returns the text of every message sent or edited.
func (a *telegramAPI) texts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []string
	for _, c := range a.calls {
		if text, ok := c.Params["text"].(string); ok {
			out = append(out, text)
		}
	}
	return out
}

func (a *telegramAPI) last(method string) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.calls) - 1; i >= 0; i-- {
		if a.calls[i].Method == method {
			return a.calls[i].Params
		}
	}
	return nil
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Current(ctx context.Context, userID int64) (state.State, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(state.State), args.Error(1)
}

func (m *mockEngine) Start(ctx context.Context, in booking.Input) (booking.Prompt, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(booking.Prompt), args.Error(1)
}

func (m *mockEngine) Home(ctx context.Context, userID int64) (booking.Prompt, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(booking.Prompt), args.Error(1)
}

func (m *mockEngine) Handle(ctx context.Context, in booking.Input) (booking.Prompt, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(booking.Prompt), args.Error(1)
}

type fakeVerifier struct {
	mu       sync.Mutex
	verified map[int64]bool
	pending  map[int64]int
}

func newFakeVerifier(verified ...int64) *fakeVerifier {
	v := &fakeVerifier{verified: make(map[int64]bool), pending: make(map[int64]int)}
	for _, id := range verified {
		v.verified[id] = true
	}
	return v
}

func (v *fakeVerifier) IsVerified(_ context.Context, userID int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verified[userID]
}

func (v *fakeVerifier) Issue(_ context.Context, userID int64) (verification.Challenge, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending[userID] = 5
	return verification.Challenge{A: 2, B: 3}, nil
}

func (v *fakeVerifier) Check(_ context.Context, userID int64, text string) (verification.Outcome, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	answer, ok := v.pending[userID]
	switch {
	case !ok:
		return verification.OutcomeNoChallenge, nil
	case strings.TrimSpace(text) != "5" || answer != 5:
		return verification.OutcomeWrong, nil
	}
	delete(v.pending, userID)
	v.verified[userID] = true
	return verification.OutcomeVerified, nil
}

type fakeContent struct {
	settings  domain.Settings
	masters   []domain.Master
	portfolio []domain.PortfolioItem
}

func (f *fakeContent) GetSettings(context.Context) (domain.Settings, error) { return f.settings, nil }

func (f *fakeContent) ListMasters(context.Context) ([]domain.Master, error) { return f.masters, nil }

func (f *fakeContent) ListPortfolio(context.Context) ([]domain.PortfolioItem, error) {
	return f.portfolio, nil
}

type fakeMedia map[string]string

func (f fakeMedia) FetchMedia(_ context.Context, url string) (*gateway.Media, error) {
	data, ok := f[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return &gateway.Media{Data: []byte(data), ContentType: "image/jpeg"}, nil
}

// keyTexts answers with the key itself so tests can assert which message was chosen.
type keyTexts struct {
	images map[string]string
	remote map[string]string
}

func (keyTexts) Text(_ context.Context, key string) string { return key }

func (keyTexts) Render(_ context.Context, key string, vars map[string]string) string {
	parts := []string{key}
	for _, name := range []string{"a", "b", "address", "url", "master", "styles"} {
		if v, ok := vars[name]; ok {
			parts = append(parts, name+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

func (t keyTexts) Image(_ context.Context, key string) string { return t.images[key] }

func (t keyTexts) Remote(_ context.Context, key string) string { return t.remote[key] }

type fixture struct {
	bot      *Bot
	api      *telegramAPI
	engine   *mockEngine
	verifier *fakeVerifier
	content  *fakeContent
	texts    keyTexts
	media    fakeMedia
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	api := &telegramAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	f := &fixture{
		api:      api,
		engine:   &mockEngine{},
		verifier: newFakeVerifier(1),
		content:  &fakeContent{},
		texts:    keyTexts{images: map[string]string{}, remote: map[string]string{}},
		media:    fakeMedia{},
	}

	b, err := NewWithSettings(telebot.Settings{Token: "test", URL: srv.URL, Offline: true}, Deps{
		Engine:   f.engine,
		Verifier: f.verifier,
		Content:  f.content,
		Media:    f.media,
		Texts:    f.texts,
		Turns:    state.NewTurnLocker(),
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	f.bot = b
	return f
}

func (f *fixture) text(t *testing.T, userID int64, text string) {
	t.Helper()
	u := telebot.Update{
		ID: 1,
		Message: &telebot.Message{
			ID:     10,
			Sender: &telebot.User{ID: userID, Username: "ink_lover"},
			Chat:   &telebot.Chat{ID: userID},
			Text:   text,
		},
	}
	require.NoError(t, f.bot.Router().Route(f.bot.Telebot().NewContext(u)))
}

func (f *fixture) tap(t *testing.T, userID int64, data string) {
	t.Helper()
	u := telebot.Update{
		ID: 2,
		Callback: &telebot.Callback{
			ID:     "cb",
			Sender: &telebot.User{ID: userID, Username: "ink_lover"},
			Data:   data,
			Message: &telebot.Message{
				ID:   20,
				Chat: &telebot.Chat{ID: userID},
				Text: "previous screen",
			},
		},
	}
	require.NoError(t, f.bot.Router().Route(f.bot.Telebot().NewContext(u)))
}

func markupOf(params map[string]any) string {
	markup, _ := params["reply_markup"].(string)
	return markup
}

func TestStart(t *testing.T) {
	t.Run("verified user sees the main menu", func(t *testing.T) {
		f := newFixture(t)
		f.text(t, 1, "/start")

		sent := f.api.last("sendMessage")
		require.NotNil(t, sent)
		assert.Equal(t, "welcome", sent["text"])
		assert.Equal(t, "Markdown", sent["parse_mode"])
		assert.Contains(t, markupOf(sent), `"callback_data":"book"`)
		assert.Contains(t, markupOf(sent), `"callback_data":"route"`)
	})

	t.Run("admin welcome wins over the bundled one", func(t *testing.T) {
		f := newFixture(t)
		f.texts.remote["welcome"] = "Добро пожаловать в студию"
		f.text(t, 1, "/start@studio_bot")

		assert.Equal(t, []string{"Добро пожаловать в студию"}, f.api.texts())
	})

	t.Run("welcome image is sent as a photo", func(t *testing.T) {
		f := newFixture(t)
		f.texts.images["welcome"] = "/uploads/welcome.jpg"
		f.media["/uploads/welcome.jpg"] = "jpeg"
		f.text(t, 1, "/start")

		assert.Equal(t, []string{"sendPhoto"}, f.api.methods())
	})

	t.Run("unverified user gets a challenge", func(t *testing.T) {
		f := newFixture(t)
		f.text(t, 2, "/start")

		assert.Equal(t, []string{"captcha.prompt a=2 b=3"}, f.api.texts())
	})
}

func TestCaptchaAnswers(t *testing.T) {
	f := newFixture(t)
	f.engine.On("Current", mock.Anything, int64(2)).Return(state.StateIdle, nil)

	f.text(t, 2, "hello")
	f.text(t, 2, "/start")
	f.text(t, 2, "7")
	f.text(t, 2, " 5 ")

	assert.Equal(t, []string{"common.unknown", "captcha.prompt a=2 b=3", "captcha.wrong", "welcome"}, f.api.texts())
	assert.True(t, f.verifier.IsVerified(context.Background(), 2))
}

func TestBookingEntry(t *testing.T) {
	prompt := booking.Prompt{
		Key:     "booking.choose_service",
		Text:    "booking.choose_service",
		Choices: [][]booking.Choice{{{Text: "Тату", Action: "svc:1"}}, {{Text: "back", Action: "back"}, {Text: "home", Action: "home"}}},
	}

	t.Run("menu button edits the tapped message", func(t *testing.T) {
		f := newFixture(t)
		f.engine.On("Start", mock.Anything, booking.Input{UserID: 1, ChatID: 1, Username: "ink_lover", Action: "book"}).Return(prompt, nil).Once()

		f.tap(t, 1, "book")

		f.engine.AssertExpectations(t)
		assert.Equal(t, []string{"answerCallbackQuery", "editMessageText"}, f.api.methods())
		assert.Contains(t, markupOf(f.api.last("editMessageText")), `"callback_data":"svc:1"`)
	})

	t.Run("command sends a new message", func(t *testing.T) {
		f := newFixture(t)
		f.engine.On("Start", mock.Anything, mock.MatchedBy(func(in booking.Input) bool {
			return in.UserID == 1 && in.Text == "/book"
		})).Return(prompt, nil).Once()

		f.text(t, 1, "/book")

		assert.Equal(t, []string{"sendMessage"}, f.api.methods())
	})

	t.Run("unverified user is challenged before booking", func(t *testing.T) {
		f := newFixture(t)
		f.tap(t, 3, "book")

		f.engine.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
		assert.Equal(t, []string{"captcha.prompt a=2 b=3"}, f.api.texts())
	})
}

func TestBookingSteps(t *testing.T) {
	f := newFixture(t)

	f.engine.On("Handle", mock.Anything, mock.MatchedBy(func(in booking.Input) bool {
		return in.Action == "t:10:00"
	})).Return(booking.Prompt{Text: "booking.choose_master"}, nil).Once()
	f.engine.On("Current", mock.Anything, int64(1)).Return(state.StateAwaitingName, nil)
	f.engine.On("Handle", mock.Anything, mock.MatchedBy(func(in booking.Input) bool {
		return in.Action == "" && in.Text == "Аня"
	})).Return(booking.Prompt{Text: "booking.ask_phone"}, nil).Once()

	f.tap(t, 1, "t:10:00")
	f.text(t, 1, "Аня")

	f.engine.AssertExpectations(t)
	assert.Equal(t, []string{"booking.choose_master", "booking.ask_phone"}, f.api.texts())
}

func TestHomeAndCancel(t *testing.T) {
	f := newFixture(t)
	f.engine.On("Home", mock.Anything, int64(1)).Return(booking.Prompt{Home: true}, nil).Twice()

	f.tap(t, 1, "home")
	f.text(t, 1, "/cancel")

	f.engine.AssertExpectations(t)
	assert.Equal(t, []string{"welcome", "welcome"}, f.api.texts())
}

func TestConfirmationShowsMainMenu(t *testing.T) {
	f := newFixture(t)
	f.engine.On("Current", mock.Anything, int64(1)).Return(state.StateAwaitingPhone, nil)
	f.engine.On("Handle", mock.Anything, mock.Anything).Return(booking.Prompt{
		Key:      "booking.confirmed",
		Text:     "*Запись подтверждена!*",
		Markdown: true,
		Home:     true,
	}, nil)

	f.text(t, 1, "+79991234567")

	sent := f.api.last("sendMessage")
	require.NotNil(t, sent)
	assert.Equal(t, "*Запись подтверждена!*", sent["text"])
	assert.Equal(t, "Markdown", sent["parse_mode"])
	assert.Contains(t, markupOf(sent), `"callback_data":"book"`)
}

func TestFailuresAreAnswered(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		f := newFixture(t)
		f.engine.On("Current", mock.Anything, int64(1)).Return(state.StateIdle, errors.New("redis down"))

		f.text(t, 1, "Аня")

		assert.Equal(t, []string{"common.error"}, f.api.texts())
	})

	t.Run("panic", func(t *testing.T) {
		f := newFixture(t)
		f.engine.On("Handle", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("boom")
		}).Return(booking.Prompt{}, nil)

		assert.NotPanics(t, func() { f.tap(t, 1, "svc:1") })
		assert.Equal(t, []string{"common.error"}, f.api.texts())
	})
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	f.text(t, 1, "/ping")

	assert.Equal(t, []string{"common.pong"}, f.api.texts())
}

func TestUnknownCallbackIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.tap(t, 1, "unknown-button")

	assert.Equal(t, []string{"answerCallbackQuery"}, f.api.methods())
}

func TestRouter_FindCallbackHandler(t *testing.T) {
	r := NewRouter(nil, testLogger())
	var got string
	handler := func(name string) func(telebot.Context) error {
		return func(telebot.Context) error {
			got = name
			return nil
		}
	}
	r.RegisterCallback("d:", handler("date"))
	r.RegisterCallback("detail:", handler("detail"))
	r.RegisterCallback("back", handler("back"))

	testCases := map[string]string{
		"d:2025-03-10": "date",
		"detail:7":     "detail",
		"back":         "back",
	}
	for data, want := range testCases {
		h := r.findCallbackHandler(data)
		require.NotNil(t, h, data)
		require.NoError(t, h(nil))
		assert.Equal(t, want, got)
	}

	assert.Nil(t, r.findCallbackHandler("backup"))
	assert.Nil(t, r.findCallbackHandler("d"))
}

func TestParseCommand(t *testing.T) {
	testCases := map[string]string{
		"/start":                "/start",
		"/Book@studio_bot now":  "/book",
		"  /cancel  ":           "/cancel",
		"Аня":                   "",
		"":                      "",
	}
	for text, want := range testCases {
		assert.Equal(t, want, parseCommand(text), text)
	}
}
