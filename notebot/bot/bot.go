package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"notebot/notebot/utils/logging"
)

type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	workers int
}

func New(token string, notes Notes, workers int) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logging.AppLogger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Bot{api: api, handler: NewHandler(api, notes), workers: workers}, nil
}

// Run long-polls for updates until ctx is cancelled, then waits for in-flight
// updates to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	logging.AppLogger.Info("Bot is running", zap.Int("workers", b.workers))
	Dispatch(ctx, updates, b.handler.Handle, b.workers)
	b.api.StopReceivingUpdates()
	return nil
}

// Dispatch runs handle for each update on at most workers goroutines.
func Dispatch(ctx context.Context, updates <-chan tgbotapi.Update, handle func(context.Context, tgbotapi.Update), workers int) {
	if workers < 1 {
		workers = 1
	}
	p := pool.New().WithMaxGoroutines(workers)
	defer p.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			// in-flight updates finish even after shutdown starts
			p.Go(func() { handle(context.WithoutCancel(ctx), update) })
		}
	}
}
