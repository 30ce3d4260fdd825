package telegram

import (
	"fmt"
	"html"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/kirillm/tradebot/internal/domain"
	"github.com/kirillm/tradebot/pkg/utils"
)

// Notifier отправляет уведомления о сделках в Telegram.
// Уведомления некритичны: любая ошибка отправки логируется
// и проглатывается, торговый цикл из-за Telegram не падает.
// Nil-получатель безопасен и превращает все методы в no-op.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewNotifier создает нотификатор. Пустой токен или нулевой chat id
// означают, что уведомления выключены: возвращается nil без ошибки.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger := utils.ComponentLogger("telegram")
	logger.Info().Str("username", api.Self.UserName).Msg("telegram bot authorized")

	return &Notifier{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

// TestConnection проверяет доступность Telegram API
func (n *Notifier) TestConnection() bool {
	if n == nil || n.api == nil {
		return false
	}
	if _, err := n.api.GetMe(); err != nil {
		n.logger.Warn().Err(err).Msg("telegram connection test failed")
		return false
	}
	return true
}

// NotifyStartup сообщает о запуске бота
func (n *Notifier) NotifyStartup(tradingPair string, demoMode bool) {
	mode := "live"
	if demoMode {
		mode = "demo"
	}
	n.send(fmt.Sprintf(
		"🤖 <b>Trading bot started</b>\nPair: <code>%s</code>\nMode: <code>%s</code>",
		html.EscapeString(tradingPair), mode,
	))
}

// NotifyBuy сообщает об отправленном ордере на покупку
func (n *Notifier) NotifyBuy(d domain.Decision, result *domain.OrderResult) {
	msg := fmt.Sprintf(
		"🟢 <b>Buy order placed</b>\nAmount: <code>%.2f USDT</code>\nTake profit: <code>%.2f%%</code>\nStop loss: <code>%.2f%%</code>",
		d.BuyAmount(), d.TakeProfitPercent(), d.StopLossPercent(),
	)
	if result != nil && result.OrderID != "" {
		msg += fmt.Sprintf("\nOrder: <code>%s</code>", html.EscapeString(result.OrderID))
	}
	msg += reasonLine(d)
	n.send(msg)
}

// NotifySell сообщает об отправленном ордере на продажу
func (n *Notifier) NotifySell(d domain.Decision, result *domain.OrderResult) {
	amount := "entire position"
	if d.SellAmount() > 0 {
		amount = fmt.Sprintf("%.8f BTC", d.SellAmount())
	}
	msg := fmt.Sprintf("🔴 <b>Sell order placed</b>\nAmount: <code>%s</code>", amount)
	if result != nil && result.OrderID != "" {
		msg += fmt.Sprintf("\nOrder: <code>%s</code>", html.EscapeString(result.OrderID))
	}
	msg += reasonLine(d)
	n.send(msg)
}

// NotifyCancel сообщает об отмене ордера
func (n *Notifier) NotifyCancel(d domain.Decision) {
	msg := fmt.Sprintf(
		"⚪️ <b>Order cancelled</b>\nOrder: <code>%s</code>",
		html.EscapeString(d.OrderID()),
	)
	msg += reasonLine(d)
	n.send(msg)
}

// NotifySellAfterCancel сообщает о ликвидации позиции после отмены
// последнего ордера
func (n *Notifier) NotifySellAfterCancel(btcAmount float64) {
	n.send(fmt.Sprintf(
		"⚠️ <b>Position liquidated</b>\nAll orders cancelled, selling <code>%.8f BTC</code> at market.",
		btcAmount,
	))
}

// NotifyRejected сообщает, что решение отклонено предохранителем
func (n *Notifier) NotifyRejected(d domain.Decision, reason error) {
	n.send(fmt.Sprintf(
		"🚫 <b>Decision rejected</b>\nStatus: <code>%s</code>\nReason: %s",
		html.EscapeString(d.Status()), html.EscapeString(reason.Error()),
	))
}

// NotifyError сообщает о существенной ошибке цикла
func (n *Notifier) NotifyError(context string, err error) {
	n.send(fmt.Sprintf(
		"❗️ <b>Error</b> (%s)\n<code>%s</code>",
		html.EscapeString(context), html.EscapeString(err.Error()),
	))
}

// NotifyShutdown сообщает об остановке бота
func (n *Notifier) NotifyShutdown(uptime time.Duration) {
	n.send(fmt.Sprintf("🛑 <b>Trading bot stopped</b>\nUptime: <code>%s</code>", uptime.Round(time.Second)))
}

func reasonLine(d domain.Decision) string {
	if d.Response() == "" {
		return ""
	}
	return "\n\n<i>" + html.EscapeString(d.Response()) + "</i>"
}

func (n *Notifier) send(text string) {
	if n == nil || n.api == nil {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn().Err(err).Msg("failed to send telegram notification")
	}
}
