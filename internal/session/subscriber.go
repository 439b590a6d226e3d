package session

import (
	"sync"

	"github.com/EgorLis/wslogon/internal/wire"
)

// Subscriber получает события сессии по одному, в порядке возникновения,
// в горутине сессии. Из колбэка можно вызывать Send и Close.
type Subscriber interface {
	OnOpen()
	OnMessage(msg *wire.Message)
	OnClose(info CloseInfo)
	OnError(err error)
}

// CloseInfo описывает завершение одной попытки соединения.
type CloseInfo struct {
	AttemptID    string
	Err          error // nil при штатном закрытии
	Reconnecting bool
}

// SubscriberFuncs собирает Subscriber из необязательных колбэков, nil пропускаются.
type SubscriberFuncs struct {
	Open    func()
	Message func(msg *wire.Message)
	Close   func(info CloseInfo)
	Error   func(err error)
}

func (f SubscriberFuncs) OnOpen() {
	if f.Open != nil {
		f.Open()
	}
}

func (f SubscriberFuncs) OnMessage(msg *wire.Message) {
	if f.Message != nil {
		f.Message(msg)
	}
}

func (f SubscriberFuncs) OnClose(info CloseInfo) {
	if f.Close != nil {
		f.Close(info)
	}
}

func (f SubscriberFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

type noteKind int

const (
	noteOpen noteKind = iota
	noteMessage
	noteClose
	noteError
)

type notification struct {
	kind noteKind
	msg  *wire.Message
	info CloseInfo
	err  error
}

// notifier: очередь с одним потребителем между автоматом и подписчиком.
// push никогда не блокируется.
type notifier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []notification
	stopped bool
	onPanic func(v any)
}

func newNotifier(onPanic func(v any)) *notifier {
	n := &notifier{onPanic: onPanic}
	n.cond = sync.NewCond(&n.mu)
	return n
}

func (n *notifier) push(note notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	n.queue = append(n.queue, note)
	n.cond.Signal()
}

// stop даёт run доставить уже поставленное и завершиться.
func (n *notifier) stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	n.cond.Broadcast()
}

func (n *notifier) run(current func() Subscriber) {
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.stopped {
			n.cond.Wait()
		}
		batch := n.queue
		n.queue = nil
		n.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, note := range batch {
			n.deliver(current(), note)
		}
	}
}

func (n *notifier) deliver(sub Subscriber, note notification) {
	if sub == nil {
		return
	}
	defer func() {
		if v := recover(); v != nil && n.onPanic != nil {
			n.onPanic(v)
		}
	}()
	switch note.kind {
	case noteOpen:
		sub.OnOpen()
	case noteMessage:
		sub.OnMessage(note.msg)
	case noteClose:
		sub.OnClose(note.info)
	case noteError:
		sub.OnError(note.err)
	}
}
