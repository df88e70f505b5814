package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"nexus-crypto-desk/internal/agent"
	"nexus-crypto-desk/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// QuoteReader is the market surface the bot needs.
type QuoteReader interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
}

// Bot wraps the Telegram client. Beyond chat commands it doubles as the
// plan alert channel for the plan sync job.
type Bot struct {
	bot    *tele.Bot
	chatID int64
}

// StartTelegramBot creates and starts the bot. Returns nil when
// TELEGRAM_BOT_TOKEN is not set.
func StartTelegramBot(market QuoteReader, state *agent.RunStateStore, chatID int64) *Bot {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /price BTC\nSupported: %s", strings.Join(domain.SupportedSymbols, ", ")))
		}
		symbol := strings.ToUpper(args[0])
		if !domain.IsSupportedSymbol(symbol) {
			return c.Send(fmt.Sprintf("Unknown symbol: %s\nSupported: %s", symbol, strings.Join(domain.SupportedSymbols, ", ")))
		}
		snapshot, err := market.GetCurrentPrice(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching price for %s: %v", symbol, err))
		}
		msg := fmt.Sprintf(
			"%s\nPrice: $%.2f\n24h Change: %.2f%%\n24h Volume: $%.0f",
			symbol, snapshot.PriceUSD, snapshot.Change24hPct, snapshot.Volume24h,
		)
		return c.Send(msg)
	})

	b.Handle("/analysis", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /analysis BTC\nSupported: %s", strings.Join(domain.SupportedSymbols, ", ")))
		}
		symbol := strings.ToUpper(args[0])
		if !domain.IsSupportedSymbol(symbol) {
			return c.Send(fmt.Sprintf("Unknown symbol: %s\nSupported: %s", symbol, strings.Join(domain.SupportedSymbols, ", ")))
		}
		run := state.State(symbol)
		if run == nil {
			return c.Send(fmt.Sprintf("No analysis has run for %s yet", symbol))
		}
		return c.Send(formatRunState(run))
	})

	log.Println("Telegram bot started")
	go b.Start()
	return &Bot{bot: b, chatID: chatID}
}

// NotifyPlan sends a plan status-change alert to the configured chat.
func (b *Bot) NotifyPlan(plan *domain.TradePlan, price float64) {
	if b == nil || b.chatID == 0 {
		return
	}
	msg := fmt.Sprintf(
		"Plan #%d %s %s is now %s\nEntry: $%.2f  Target: $%.2f  Stop: $%.2f\nLast price: $%.2f",
		plan.ID, plan.Symbol, plan.Side, plan.Status,
		plan.EntryPrice, plan.TargetPrice, plan.StopPrice, price,
	)
	if _, err := b.bot.Send(tele.ChatID(b.chatID), msg); err != nil {
		log.Printf("telegram plan alert: %v", err)
	}
}

func formatRunState(run *agent.RunState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s run", run.Symbol, run.Mode)
	if run.Running {
		fmt.Fprintf(&sb, " (in progress, stage: %s)", run.CurrentRole)
	} else if !run.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, " (finished %s)", run.FinishedAt.UTC().Format("15:04:05 MST"))
	}
	fmt.Fprintf(&sb, "\nStages completed: %d", len(run.Outputs))
	if run.Plan != nil {
		fmt.Fprintf(&sb, "\nPosture: %s", run.Plan.Posture)
		if run.Plan.Scenario != "" {
			fmt.Fprintf(&sb, "\nScenario: %s", run.Plan.Scenario)
		}
	}
	if run.Validation != nil {
		fmt.Fprintf(&sb, "\nValidation: %s", run.Validation.Status)
	}
	return sb.String()
}
