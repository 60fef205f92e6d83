package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/askhat/vpn-shop-bot/internal/config"
	"github.com/askhat/vpn-shop-bot/internal/models"
	"github.com/askhat/vpn-shop-bot/internal/service"
)

const actionTimeout = 45 * time.Second

// Bot is the conversation front end: it renders prompts and buttons and
// dispatches user actions into the orchestrator. No purchase logic lives
// here.
type Bot struct {
	tb           *tele.Bot
	orchestrator *service.Orchestrator
	logger       *zap.Logger

	name      string
	price     string
	currency  string
	daysValid int
}

var (
	btnBuy   = tele.Btn{Unique: "buy"}
	btnCheck = tele.Btn{Unique: "check"}
)

func New(cfg *config.Config, orchestrator *service.Orchestrator, logger *zap.Logger) (*Bot, error) {
	var poller tele.Poller = &tele.LongPoller{Timeout: 10 * time.Second}
	if strings.TrimSpace(cfg.Bot.WebhookURL) != "" {
		poller = &tele.Webhook{
			Listen:   ":8443",
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: poller,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b := &Bot{
		tb:           tb,
		orchestrator: orchestrator,
		logger:       logger,
		name:         cfg.Bot.Name,
		price:        cfg.Plan.Price,
		currency:     cfg.Plan.Currency,
		daysValid:    cfg.Plan.DaysValid,
	}

	tb.Handle("/start", b.onStart)
	tb.Handle(&btnBuy, b.onBuy)
	tb.Handle(&btnCheck, b.onCheck)

	return b, nil
}

func (b *Bot) Start() {
	b.logger.Info("telegram bot starting", zap.String("bot", b.name))
	b.tb.Start()
}

func (b *Bot) Stop() {
	b.tb.Stop()
}

func (b *Bot) onStart(c tele.Context) error {
	name := c.Sender().FirstName
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"Привет, %s! Я %s.\n\n"+
			"С моей помощью ты можешь оплатить доступ и получить персональную конфигурацию VPN.\n"+
			"Стоимость подписки: <b>%s %s</b> на %d дней.\n\n"+
			"Нажми кнопку ниже, чтобы перейти к оплате.",
		name, b.name, b.price, b.currency, b.daysValid,
	)

	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Оплатить доступ", btnBuy.Unique)))

	return c.Send(text, markup, tele.ModeHTML)
}

func (b *Bot) onBuy(c tele.Context) error {
	if err := c.Respond(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	tx, err := b.orchestrator.Initiate(ctx, c.Sender().ID)
	if err != nil {
		b.logger.Error("failed to initiate purchase",
			zap.Int64("requester_id", c.Sender().ID),
			zap.Error(err),
		)
		return c.Edit("Не удалось создать платеж. Попробуй еще раз чуть позже.")
	}

	markup := &tele.ReplyMarkup{}
	markup.Inline(
		markup.Row(markup.URL("Оплатить", tx.ConfirmationURL)),
		markup.Row(markup.Data("Проверить оплату", btnCheck.Unique, tx.ID)),
	)

	return c.Edit(
		"Перейди по ссылке для оплаты. После успешной оплаты нажми \"Проверить оплату\".",
		markup,
	)
}

func (b *Bot) onCheck(c tele.Context) error {
	if err := c.Respond(); err != nil {
		return err
	}

	id := c.Data()
	if id == "" {
		return c.Edit("Не удалось найти платеж. Попробуйте снова.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	outcome, err := b.orchestrator.Confirm(ctx, id)
	if err != nil {
		return c.Edit(b.renderConfirmError(id, err))
	}

	if outcome.AlreadyProvisioned {
		return c.Edit("Доступ по этому платежу уже был выдан. Если потерял конфигурацию, напиши в поддержку.")
	}

	if outcome.Account == nil {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.Data("Проверить оплату", btnCheck.Unique, id)))
		return c.Edit(
			fmt.Sprintf("Статус платежа: %s. Повтори проверку после оплаты.", outcome.Status),
			markup,
		)
	}

	return b.sendCredentials(c, outcome.Account)
}

func (b *Bot) renderConfirmError(id string, err error) string {
	var perr *models.ProvisioningError
	switch {
	case errors.Is(err, models.ErrTransactionNotFound):
		return "Платеж не найден в хранилище."
	case errors.Is(err, models.ErrPaymentNotFound):
		return "Платежный сервис не знает такой платеж. Попробуй оформить покупку заново."
	case errors.Is(err, models.ErrGatewayUnavailable):
		return "Платежный сервис временно недоступен. Повтори проверку через минуту."
	case errors.As(err, &perr):
		return "Оплата прошла, но создать аккаунт не удалось. Нажми \"Проверить оплату\" еще раз или напиши в поддержку — повторно деньги не спишутся."
	default:
		b.logger.Error("confirmation check failed",
			zap.String("transaction_id", id),
			zap.Error(err),
		)
		return "Что-то пошло не так. Попробуй еще раз."
	}
}

func (b *Bot) sendCredentials(c tele.Context, account *models.ProvisionedAccount) error {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.URL("Подписка", account.ConnectionDescriptor)))

	message := fmt.Sprintf(
		"✅ Доступ готов!\n\n"+
			"Логин: <code>%s</code>\n"+
			"Подписка: <code>%s</code>\n\n"+
			"Добавь этот URI в клиент или отсканируй QR-код ниже.",
		account.Handle, account.ConnectionDescriptor,
	)

	if err := c.Edit(message, markup, tele.ModeHTML); err != nil {
		return err
	}

	photo, err := qrPhoto(account.ConnectionDescriptor)
	if err != nil {
		b.logger.Warn("failed to render QR code", zap.Error(err))
		return nil
	}
	return c.Send(photo)
}
