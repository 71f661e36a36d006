// Package ratelimiter paces outgoing Telegram messages per chat.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	PrivateChatRate = time.Second
	GroupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// Sender is the part of *tgbotapi.BotAPI the limiter needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type request struct {
	message  tgbotapi.Chattable
	response chan response
}

type response struct {
	message tgbotapi.Message
	err     error
}

type RateLimiter struct {
	api         Sender
	queue       chan request
	lastSent    map[int64]time.Time
	privateRate time.Duration
	groupRate   time.Duration
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	log         *slog.Logger
}

func New(api Sender, log *slog.Logger) *RateLimiter {
	return NewWithRates(api, PrivateChatRate, GroupChatRate, log)
}

// NewWithRates starts a limiter that keeps at least privateRate between messages to one private chat
// and groupRate between messages to one group chat.
func NewWithRates(api Sender, privateRate, groupRate time.Duration, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		api:         api,
		queue:       make(chan request, queueSize),
		lastSent:    make(map[int64]time.Time),
		privateRate: privateRate,
		groupRate:   groupRate,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         log,
	}

	go rl.processQueue()

	return rl
}

// Send queues a message and waits until it is delivered or the limiter stops.
func (rl *RateLimiter) Send(
	message tgbotapi.Chattable,
) (tgbotapi.Message, error) {
	req := request{
		message:  message,
		response: make(chan response, 1),
	}

	select {
	case rl.queue <- req:
	case <-rl.ctx.Done():
		return tgbotapi.Message{}, rl.ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-rl.done:
		select {
		case resp := <-req.response:
			return resp.message, resp.err
		default:
			return tgbotapi.Message{}, rl.ctx.Err()
		}
	}
}

// Request bypasses the queue. Chat actions and callback answers are not rate limited by Telegram.
func (rl *RateLimiter) Request(
	c tgbotapi.Chattable,
) (*tgbotapi.APIResponse, error) {
	return rl.api.Request(c)
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
	<-rl.done
}

func (rl *RateLimiter) processQueue() {
	defer close(rl.done)

	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- response{err: rl.ctx.Err()}
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	chatID := getChatID(req.message)

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		delay := rl.getDelay(chatID, lastSent, time.Now())

		if delay > 0 {
			rl.log.DebugContext(rl.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"chattableType", fmt.Sprintf("%T", req.message),
				"queueLen", len(rl.queue))

			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-rl.ctx.Done():
				t.Stop()
				req.response <- response{err: rl.ctx.Err()}

				return
			}
		}
	}

	message, err := rl.api.Send(req.message)

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- response{
		message: message,
		err:     err,
	}
}

func getChatID(message tgbotapi.Chattable) int64 {
	switch m := message.(type) {
	case tgbotapi.MessageConfig:
		return m.ChatID
	case tgbotapi.EditMessageTextConfig:
		return m.ChatID
	case tgbotapi.DeleteMessageConfig:
		return m.ChatID
	case tgbotapi.ChatActionConfig:
		return m.ChatID
	default:
		return 0
	}
}

func (rl *RateLimiter) getDelay(chatID int64, lastSent, now time.Time) time.Duration {
	return max(rl.getRate(chatID)-now.Sub(lastSent), 0)
}

// Negative chat IDs are groups and channels.
func (rl *RateLimiter) getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return rl.groupRate
	}
	return rl.privateRate
}
