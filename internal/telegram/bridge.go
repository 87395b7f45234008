package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc/pool"

	"github.com/pyromancer/verifikator/internal/tools/base"
)

const (
	initialBackoff = 5 * time.Second
	maxBackoff     = 5 * time.Minute
)

// messenger is the part of the Bot API the bridge talks to.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bridge struct {
	token   string
	tools   map[string]base.Tool
	allowed string
	workers *pool.Pool
	log     zerolog.Logger
	connect func(token string) (*tgbotapi.BotAPI, error)

	mu  sync.RWMutex
	bot messenger
}

// NewBridge wires the bot commands to Telegram. Updates are read one at a
// time; commands that acknowledge first run on a pool of at most workers
// goroutines.
func NewBridge(token string, tools map[string]base.Tool, allowedUsers string, workers int, log zerolog.Logger) *Bridge {
	if workers < 1 {
		workers = 1
	}
	return &Bridge{
		token:   token,
		tools:   tools,
		allowed: allowedUsers,
		workers: pool.New().WithMaxGoroutines(workers),
		log:     log,
		connect: tgbotapi.NewBotAPI,
	}
}

func (b *Bridge) client() messenger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bot
}

func (b *Bridge) setClient(m messenger) {
	b.mu.Lock()
	b.bot = m
	b.mu.Unlock()
}

func (b *Bridge) isAllowed(userID string) bool {
	if strings.TrimSpace(b.allowed) == "*" {
		return true
	}
	for _, u := range strings.Split(b.allowed, ",") {
		if strings.TrimSpace(u) == userID {
			return true
		}
	}
	return false
}

// Start connects to Telegram and handles updates until ctx is done,
// reconnecting with exponential backoff whenever the connection drops.
func (b *Bridge) Start(ctx context.Context) error {
	defer b.workers.Wait()

	for {
		api, err := b.dial(ctx)
		if err != nil {
			return err
		}
		b.setClient(api)
		b.log.Info().Str("account", api.Self.UserName).Msg("authorized on telegram")
		b.registerCommands()

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := api.GetUpdatesChan(u)

		if done := b.consume(ctx, updates); done {
			api.StopReceivingUpdates()
			return nil
		}

		b.log.Warn().Msg("telegram update channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func (b *Bridge) dial(ctx context.Context) (*tgbotapi.BotAPI, error) {
	backoff := retry.WithCappedDuration(maxBackoff, retry.NewExponential(initialBackoff))

	var api *tgbotapi.BotAPI
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b.log.Info().Msg("connecting to telegram")
		var err error
		api, err = b.connect(b.token)
		if err != nil {
			b.log.Error().Err(err).Msg("telegram connection failed, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return api, nil
}

// consume reads updates until the channel closes (false) or ctx is done (true).
func (b *Bridge) consume(ctx context.Context, updates tgbotapi.UpdatesChannel) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case update, ok := <-updates:
			if !ok {
				return false
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, update tgbotapi.Update) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return
	}
	userID := strconv.FormatInt(m.From.ID, 10)
	if !b.isAllowed(userID) {
		b.log.Warn().Str("user", userID).Msg("unauthorized user")
		return
	}
	b.handleMessage(ctx, m)
}

func (b *Bridge) registerCommands() {
	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var cmds []tgbotapi.BotCommand
	for _, name := range names {
		desc := b.tools[name].Description()
		if utf8.RuneCountInString(desc) > 100 {
			desc = string([]rune(desc)[:97]) + "..."
		}
		cmds = append(cmds, tgbotapi.BotCommand{
			Command:     strings.ToLower(name),
			Description: desc,
		})
	}

	if _, err := b.client().Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		b.log.Error().Err(err).Msg("failed to register telegram commands")
	}
}

// parseCommand splits "/verify@SomeBot spotify https://..." into
// ("verify", "spotify https://..."). ok is false for plain text.
func parseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	parts := strings.SplitN(text[1:], " ", 2)
	name = strings.ToLower(parts[0])
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return name, args, name != ""
}

// handleMessage runs on the update loop. Only the Execute of an
// acknowledging tool is handed to the worker pool, so nothing calls Go on
// the pool after the loop has returned and Start is waiting on it.
func (b *Bridge) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	name, input, ok := parseCommand(m.Text)
	if !ok {
		return
	}
	tool, ok := b.tools[name]
	if !ok {
		b.sendText(m.Chat.ID, "Perintah tidak dikenal.")
		return
	}

	if ack, ok := tool.(base.Acknowledger); ok {
		if msg, ok := ack.Ack(input); ok {
			b.sendText(m.Chat.ID, msg)
		}
		b.workers.Go(func() {
			b.execute(ctx, m.Chat.ID, tool, input)
		})
		return
	}
	b.execute(ctx, m.Chat.ID, tool, input)
}

func (b *Bridge) execute(ctx context.Context, chatID int64, tool base.Tool, input string) {
	response, err := tool.Execute(ctx, input)
	if err != nil {
		b.log.Error().Err(err).Str("command", tool.Name()).Msg("command failed")
		b.sendText(chatID, fmt.Sprintf("❌ Terjadi kesalahan: %v", err))
		return
	}
	b.sendText(chatID, response)
}

func (b *Bridge) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.client().Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat", chatID).Msg("failed to send telegram message")
	}
}
