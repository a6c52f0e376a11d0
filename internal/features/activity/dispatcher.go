package activity

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handler получает уведомления об активности.
type Handler interface {
	HandleActivity(ctx context.Context, n Notification)
}

// HandlerFunc позволяет использовать функцию как Handler.
type HandlerFunc func(ctx context.Context, n Notification)

func (f HandlerFunc) HandleActivity(ctx context.Context, n Notification) { f(ctx, n) }

// Dispatcher рассылает уведомления всем подписчикам по порядку подписки.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewDispatcher создаёт диспетчер без подписчиков.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe добавляет подписчика.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

// Dispatch доставляет уведомление каждому подписчику синхронно.
// Уведомления с нулевым Amount отбрасываются, кроме ScoreChanged и
// MessageSent: короткое сообщение не засчитывается в задания, но может
// оказаться ответом в мини-игре.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	if n.Amount == 0 && n.Type != ScoreChanged && n.Type != MessageSent {
		return
	}

	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	log.WithFields(log.Fields{
		"user_id":      n.UserID,
		"community_id": n.CommunityID,
		"activity":     n.Type,
		"amount":       n.Amount,
	}).Trace("Активность")

	for _, h := range handlers {
		h.HandleActivity(ctx, n)
	}
}
