package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"fishlog/backup"
	"fishlog/config"
	"fishlog/export"
	"fishlog/logbook"
	"fishlog/store"
	"fishlog/weather"
)

const (
	startMessage      = "Tight lines! Share a location, then log a catch with /catch species [cm] [kg] | lure | notes."
	badRequestMessage = "Not sure what you mean. Try /catch, /catches or /moon."
	noCatchesMessage  = "No catches yet."
	usageCatch        = "Usage: /catch species [lengthCm] [weightKg] | lure | notes"
	usageID           = "Usage: /show 12 or /delete 12"

	buttonCatches = "🎣 Catches"
	buttonMoon    = "🌙 Moon"
	buttonExport  = "📤 Export"
	buttonShare   = "📍 Share location"

	listLimit = 10
)

// sender is the part of tgbotapi.BotAPI the bot needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// pendingCatch holds a location and photo waiting for the next /catch.
type pendingCatch struct {
	latitude  *float64
	longitude *float64
	accuracyM *float64
	photoRef  string
}

type bot struct {
	api         sender
	book        *logbook.Logbook
	allowedChat string
	loc         *time.Location
	now         func() time.Time

	mu      sync.Mutex
	pending map[int64]*pendingCatch
}

func newBot(api sender, book *logbook.Logbook, allowedChat string, loc *time.Location) *bot {
	return &bot{
		api:         api,
		book:        book,
		allowedChat: allowedChat,
		loc:         loc,
		now:         time.Now,
		pending:     make(map[int64]*pendingCatch),
	}
}

// mono() returns monospaced escaped Markdown
func mono(s string) string {
	return "`" + tgbotapi.EscapeText("MarkdownV2", s) + "`"
}

// authChat() makes sure no one else except the owner can interact with this bot
func authChat(chatID int64, allowedChatID string) bool {
	chatIDString := strconv.FormatInt(chatID, 10)
	return chatIDString == allowedChatID
}

var keyboard = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(buttonCatches),
		tgbotapi.NewKeyboardButton(buttonMoon),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButtonLocation(buttonShare),
		tgbotapi.NewKeyboardButton(buttonExport),
	),
)

// handle() is the telegram bot handler for chat interactions
func (b *bot) handle(ctx context.Context, update tgbotapi.Update) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return
	}
	if !authChat(m.Chat.ID, b.allowedChat) {
		log.Printf("WARN: chat ID %d unauthorized", m.Chat.ID)
		return
	}
	if m.From != nil {
		log.Printf("[%s] %s", m.From.UserName, m.Text)
	}
	chatID := m.Chat.ID

	switch {
	case m.Location != nil:
		b.setLocation(chatID, m.Location)
		b.reply(chatID, fmt.Sprintf("Location saved (%.5f, %.5f). It goes with the next /catch.",
			m.Location.Latitude, m.Location.Longitude))
	case len(m.Photo) > 0:
		b.setPhoto(chatID, m.Photo[len(m.Photo)-1].FileID)
		if args, ok := captionCatch(m.Caption); ok {
			b.catch(ctx, chatID, args)
			return
		}
		b.reply(chatID, "Photo saved. It goes with the next /catch.")
	case m.IsCommand():
		b.command(ctx, chatID, m.Command(), strings.TrimSpace(m.CommandArguments()))
	case m.Text == buttonCatches:
		b.listCatches(ctx, chatID)
	case m.Text == buttonMoon:
		b.reply(chatID, formatMoon(b.now(), b.loc))
	case m.Text == buttonExport:
		b.export(ctx, chatID)
	default:
		b.reply(chatID, badRequestMessage)
	}
}

func (b *bot) command(ctx context.Context, chatID int64, cmd, args string) {
	switch cmd {
	case "start", "help":
		b.reply(chatID, startMessage)
	case "status":
		b.status(ctx, chatID)
	case "trip":
		t, err := b.book.StartTrip(ctx, parseTripArgs(args))
		if errors.Is(err, logbook.ErrTripActive) {
			b.reply(chatID, "A trip is already running. End it with /endtrip.")
			return
		}
		if b.failed(chatID, err) {
			return
		}
		b.reply(chatID, "Trip started\n\n"+formatTrip(*t, b.loc))
	case "endtrip":
		t, err := b.book.EndActiveTrip(ctx)
		if errors.Is(err, logbook.ErrNoActiveTrip) {
			b.reply(chatID, "No trip is running.")
			return
		}
		if b.failed(chatID, err) {
			return
		}
		b.reply(chatID, "Trip ended\n\n"+formatTrip(*t, b.loc))
	case "catch":
		b.catch(ctx, chatID, args)
	case "catches":
		b.listCatches(ctx, chatID)
	case "show":
		b.show(ctx, chatID, args)
	case "delete":
		id, ok := parseID(args)
		if !ok {
			b.reply(chatID, usageID)
			return
		}
		err := b.book.Store().DeleteCatch(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("Catch #%d not found.", id))
			return
		}
		if b.failed(chatID, err) {
			return
		}
		b.reply(chatID, fmt.Sprintf("Catch #%d deleted.", id))
	case "moon":
		b.reply(chatID, formatMoon(b.now(), b.loc))
	case "map":
		b.catchMap(ctx, chatID)
	case "export":
		b.export(ctx, chatID)
	case "backup":
		b.backup(ctx, chatID)
	default:
		b.reply(chatID, badRequestMessage)
	}
}

func (b *bot) catch(ctx context.Context, chatID int64, args string) {
	draft, err := parseCatchArgs(args)
	if err != nil {
		b.reply(chatID, usageCatch)
		return
	}

	b.mu.Lock()
	if p := b.pending[chatID]; p != nil {
		draft.Latitude, draft.Longitude, draft.AccuracyM = p.latitude, p.longitude, p.accuracyM
		draft.PhotoRef = p.photoRef
	}
	b.mu.Unlock()

	c, err := b.book.RecordCatch(ctx, draft)
	if b.failed(chatID, err) {
		return
	}

	b.mu.Lock()
	delete(b.pending, chatID)
	b.mu.Unlock()

	b.reply(chatID, "Catch saved\n\n"+formatCatchRow(*c, b.loc))
}

func (b *bot) status(ctx context.Context, chatID int64) {
	active, err := b.book.Store().ActiveTrip(ctx)
	if b.failed(chatID, err) {
		return
	}
	text := "No active trip."
	if active != nil {
		text = "Active trip\n\n" + formatTrip(*active, b.loc)
	}

	b.mu.Lock()
	if p := b.pending[chatID]; p != nil {
		if p.latitude != nil {
			text += fmt.Sprintf("\n\nPending location: %.5f, %.5f", *p.latitude, *p.longitude)
		}
		if p.photoRef != "" {
			text += "\nPending photo: yes"
		}
	}
	b.mu.Unlock()

	b.reply(chatID, text)
}

func (b *bot) listCatches(ctx context.Context, chatID int64) {
	catches, err := b.book.Store().ListCatches(ctx)
	if b.failed(chatID, err) {
		return
	}
	if len(catches) == 0 {
		b.reply(chatID, noCatchesMessage)
		return
	}

	shown := catches
	if len(shown) > listLimit {
		shown = shown[:listLimit]
	}
	rows := make([]string, 0, len(shown))
	for _, c := range shown {
		rows = append(rows, formatCatchRow(c, b.loc))
	}
	text := strings.Join(rows, "\n\n")
	if len(catches) > len(shown) {
		text += fmt.Sprintf("\n\n%d of %d catches shown.", len(shown), len(catches))
	}
	b.reply(chatID, text)
}

func (b *bot) show(ctx context.Context, chatID int64, args string) {
	id, ok := parseID(args)
	if !ok {
		b.reply(chatID, usageID)
		return
	}
	c, err := b.book.Store().GetCatch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Catch #%d not found.", id))
		return
	}
	if b.failed(chatID, err) {
		return
	}

	var trip *store.Trip
	if c.TripID != nil {
		trips, err := b.book.Store().ListTrips(ctx)
		if b.failed(chatID, err) {
			return
		}
		trip = findTrip(trips, *c.TripID)
	}

	// Plain text keeps the maps link clickable.
	b.send(tgbotapi.NewMessage(chatID, formatCatchDetail(*c, trip, b.loc)))
}

func (b *bot) catchMap(ctx context.Context, chatID int64) {
	catches, err := b.book.Store().ListCatches(ctx)
	if b.failed(chatID, err) {
		return
	}
	fc := export.CatchMap(catches)
	if len(fc.Features) == 0 {
		b.reply(chatID, "No catches with a GPS position yet.")
		return
	}

	var buf bytes.Buffer
	if b.failed(chatID, export.WriteGeoJSON(&buf, catches)) {
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "catches.geojson", Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("%d catches on the map", len(fc.Features))
	b.send(doc)
}

// export builds the CSV and PDF concurrently and sends both as documents.
func (b *bot) export(ctx context.Context, chatID int64) {
	trips, catches, err := b.book.Snapshot(ctx)
	if b.failed(chatID, err) {
		return
	}

	var csvBuf, pdfBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return export.WriteCSV(&csvBuf, trips, catches, b.loc) })
	g.Go(func() error { return export.WritePDF(&pdfBuf, trips, catches, b.loc) })
	if b.failed(chatID, g.Wait()) {
		return
	}

	stamp := b.now().In(b.loc).Format("20060102-150405")
	b.send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "fishing_logbook_" + stamp + ".csv", Bytes: csvBuf.Bytes()}))
	b.send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "fishing_logbook_" + stamp + ".pdf", Bytes: pdfBuf.Bytes()}))
}

func (b *bot) backup(ctx context.Context, chatID int64) {
	var buf bytes.Buffer
	if b.failed(chatID, backup.Create(ctx, b.book.Store(), &buf)) {
		return
	}
	stamp := b.now().UTC().Format("20060102-150405")
	b.send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "fishing_logbook_backup_" + stamp + ".zip", Bytes: buf.Bytes()}))
}

func (b *bot) setLocation(chatID int64, l *tgbotapi.Location) {
	lat, lon := l.Latitude, l.Longitude
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pendingFor(chatID)
	p.latitude, p.longitude = &lat, &lon
	p.accuracyM = nil
	if l.HorizontalAccuracy > 0 {
		acc := l.HorizontalAccuracy
		p.accuracyM = &acc
	}
}

func (b *bot) setPhoto(chatID int64, fileID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingFor(chatID).photoRef = fileID
}

// pendingFor must be called with mu held.
func (b *bot) pendingFor(chatID int64) *pendingCatch {
	p := b.pending[chatID]
	if p == nil {
		p = &pendingCatch{}
		b.pending[chatID] = p
	}
	return p
}

// captionCatch returns the arguments of a "/catch ..." photo caption.
func captionCatch(caption string) (string, bool) {
	fields := strings.Fields(caption)
	if len(fields) == 0 {
		return "", false
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd != "/catch" {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(caption), fields[0])), true
}

func (b *bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, mono(text))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

func (b *bot) send(c tgbotapi.Chattable) {
	log.Println("INFO: sending message to Telegram")
	if _, err := b.api.Send(c); err != nil {
		log.Println("ERROR: cannot send message", err)
	}
}

// failed reports err to the chat and the log.
func (b *bot) failed(chatID int64, err error) bool {
	if err == nil {
		return false
	}
	log.Println("ERROR:", err)
	b.reply(chatID, "Something went wrong: "+err.Error())
	return true
}

// runBot serves the Telegram chat and the backup schedule until ctx is done.
func runBot(ctx context.Context, cfg config.Config) error {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
		return errors.New("TG_BOT_TOKEN and CHAT_ID must be set")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	book := logbook.New(st, weather.NewClient(cfg.OpenMeteoAPIEndpoint, cfg.WeatherTimeout()))

	sched := backup.NewScheduler(st, cfg.BackupDir, cfg.BackupKeep)
	if err := sched.Start(cfg.BackupCron); err != nil {
		return err
	}
	defer sched.Stop()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("connect to Telegram: %w", err)
	}
	log.Printf("INFO: Authorized on account %s", api.Self.UserName)

	b := newBot(api, book, cfg.TelegramChatID, cfg.Location())

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	log.Println("INFO: Bot started")
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			log.Println("INFO: Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, update)
		}
	}
}
