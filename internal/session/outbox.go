package session

import (
	"sync"

	"github.com/EgorLis/wslogon/internal/wire"
)

// Outbox хранит прикладные сообщения, отправленные до авторизации.
// Порядок строго FIFO, ничего не склеивается и не теряется.
type Outbox struct {
	mu    sync.Mutex
	limit int
	items []*wire.Message
}

// NewOutbox создаёт очередь не более чем на limit сообщений (0 = без ограничения).
func NewOutbox(limit int) *Outbox {
	return &Outbox{limit: limit}
}

func (o *Outbox) Enqueue(msg *wire.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.limit > 0 && len(o.items) >= o.limit {
		return ErrQueueFull
	}
	o.items = append(o.items, msg)
	return nil
}

// DrainAll забирает все сообщения в порядке добавления.
func (o *Outbox) DrainAll() []*wire.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = nil
	return out
}

// Requeue возвращает msgs в голову очереди, перед всем, что добавили после
// DrainAll. Лимит здесь не проверяется.
func (o *Outbox) Requeue(msgs []*wire.Message) {
	if len(msgs) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	items := make([]*wire.Message, 0, len(msgs)+len(o.items))
	items = append(items, msgs...)
	o.items = append(items, o.items...)
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
