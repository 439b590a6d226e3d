package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/EgorLis/wslogon/internal/observability"
	"github.com/EgorLis/wslogon/internal/wire"
)

// Session это авторизованное соединение со шлюзом, переживающее обрывы
// транспорта. Создаётся через New, запускается через Start.
type Session struct {
	id     string
	cfg    Config
	codec  wire.Codec
	log    zerolog.Logger
	rng    *rand.Rand
	notes  *notifier
	outbox *Outbox

	mu            sync.Mutex
	state         State
	authenticated bool
	transport     *transport
	loggedOut     bool
	attempts      int
	redial        *time.Timer
	heartbeatStop chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}

	subMu    sync.RWMutex
	sub      Subscriber
	subToken uint64
}

func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	id := uuid.NewString()
	logger = logger.With().Str("session", id).Logger()

	s := &Session{
		id:     id,
		cfg:    cfg,
		codec:  cfg.Codec,
		log:    logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		outbox: NewOutbox(cfg.MaxPending),
		done:   make(chan struct{}),
	}
	s.notes = newNotifier(func(v any) {
		s.log.Error().Interface("panic", v).Msg("subscriber panicked")
	})
	return s, nil
}

// Start открывает первый транспорт. Отмена ctx закрывает сессию.
//
// После отклонённого logon сессия снова в StateDisconnected и Start можно
// вызвать повторно; действует контекст первого вызова.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedOut {
		return ErrClosed
	}
	if s.state != StateDisconnected {
		return ErrAlreadyStarted
	}
	if s.ctx == nil {
		s.ctx, s.cancel = context.WithCancel(ctx)
		go s.notes.run(s.subscriber)
		go func(ctx context.Context) {
			<-ctx.Done()
			_ = s.Close()
		}(s.ctx)
	}
	s.fire(evStart)
	return nil
}

// Send отправляет msg сразу, если сессия авторизована, иначе ставит в очередь.
// ErrNotReady возвращается только когда сессия считает себя авторизованной,
// а транспорт не принял кадр. Служебные шаблоны (logon, logout, heartbeat...)
// принадлежат сессии и отклоняются с ErrReservedTemplate.
//
// Запись ограничена Config.WriteTimeout: при зависшем сервере Send, разбор
// входящих и Close ждут не дольше этого.
func (s *Session) Send(msg *wire.Message) error {
	if msg == nil || msg.Template == 0 {
		return wire.ErrMissingTemplate
	}
	if msg.IsControl() {
		return fmt.Errorf("%w: %d", ErrReservedTemplate, msg.Template)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedOut {
		return ErrClosed
	}
	if !s.authenticated {
		if err := s.outbox.Enqueue(msg); err != nil {
			return err
		}
		observability.SetQueued(s.id, s.outbox.Len())
		return nil
	}
	data, err := s.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode template %d: %w", msg.Template, err)
	}
	return s.write(data)
}

// Close делает logout и закрывает транспорт, переподключений больше не будет.
// Повторный вызов ничего не делает.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedOut {
		return nil
	}
	// флаг ставим до закрытия транспорта, иначе его close примем за обрыв
	// и переподключимся
	s.loggedOut = true
	s.log.Info().Str("state", s.state.String()).Msg("logout requested")
	s.fire(evUserClose)
	return nil
}

// Subscribe делает sub единственным получателем событий вместо прежнего.
// Возвращённая функция отписывает sub, если его ещё не заменили.
func (s *Session) Subscribe(sub Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	s.subToken++
	token := s.subToken
	s.sub = sub
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if s.subToken == token {
			s.sub = nil
		}
	}
}

func (s *Session) subscriber() Subscriber {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return s.sub
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Pending возвращает число сообщений, ждущих авторизации.
func (s *Session) Pending() int {
	return s.outbox.Len()
}

// Done закрывается, когда сессия остановлена после Close.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// fire выполняет один переход. Вызывается под s.mu.
func (s *Session) fire(ev event) {
	tr, ok := lookupTransition(s.state, ev)
	if !ok {
		s.log.Debug().Str("state", s.state.String()).Str("event", ev.String()).Msg("event ignored")
		return
	}
	s.log.Debug().
		Str("from", s.state.String()).
		Str("to", tr.next.String()).
		Str("event", ev.String()).
		Msg("transition")
	s.state = tr.next

	switch tr.act {
	case actDial:
		s.dial()
	case actSendLogon:
		s.sendLogon()
	case actAuthenticate:
		s.authenticate()
	case actCloseTransport:
		if s.transport != nil {
			s.transport.close()
		}
	case actRedial:
		s.dropTransport()
		s.scheduleRedial()
	case actLogout:
		s.logout()
	case actFinish:
		s.finish()
	}
}

func (s *Session) dial() {
	t := newTransport(s.ctx, s.cfg, transportHandlers{
		onOpen:    s.handleOpen,
		onMessage: s.handleFrame,
		onClose:   s.handleClose,
		onError:   s.handleError,
	})
	s.transport = t
	observability.RecordConnectAttempt()
	s.log.Info().Str("attempt", t.id).Str("endpoint", s.cfg.Endpoint).Msg("connecting")
	go t.run()
}

// sendLogon пишет logon прямо в транспорт, очередь только для прикладных
// сообщений.
func (s *Session) sendLogon() {
	c := s.cfg.Credentials
	data, err := s.codec.Encode(wire.NewLogon(c.User, c.Password, c.AppName, c.AppVersion))
	if err != nil {
		s.log.Error().Err(err).Msg("encode logon")
		s.notes.push(notification{kind: noteError, err: fmt.Errorf("encode logon: %w", err)})
		s.transport.close()
		return
	}
	if err := s.write(data); err != nil {
		s.log.Warn().Err(err).Msg("send logon")
		s.transport.close()
		return
	}
	s.log.Info().Str("user", c.User).Str("app", c.AppName).Msg("logon sent")
}

func (s *Session) authenticate() {
	s.authenticated = true
	s.attempts = 0
	s.flush()
	s.startHeartbeat()
}

// flush отправляет очередь по порядку. Если транспорт упал посередине,
// неотправленный хвост возвращается в голову очереди.
func (s *Session) flush() {
	pending := s.outbox.DrainAll()
	sent := 0
	for i, msg := range pending {
		data, err := s.codec.Encode(msg)
		if err != nil {
			s.log.Error().Err(err).Uint32("template", uint32(msg.Template)).Msg("drop unencodable queued message")
			s.notes.push(notification{kind: noteError, err: fmt.Errorf("encode template %d: %w", msg.Template, err)})
			continue
		}
		if err := s.write(data); err != nil {
			s.log.Warn().Err(err).Int("requeued", len(pending)-i).Msg("flush interrupted")
			s.outbox.Requeue(pending[i:])
			break
		}
		sent++
	}
	observability.SetQueued(s.id, s.outbox.Len())
	if len(pending) > 0 {
		s.log.Info().Int("sent", sent).Int("queued", len(pending)).Msg("outbox flushed")
	}
}

func (s *Session) write(data []byte) error {
	if s.transport == nil {
		return ErrNotReady
	}
	if err := s.transport.send(data); err != nil {
		return err
	}
	observability.RecordFrameOut()
	return nil
}

// dropTransport забывает неожиданно закрывшийся транспорт. Очередь
// сохраняется до следующей авторизации.
func (s *Session) dropTransport() {
	s.stopHeartbeat()
	if s.authenticated {
		s.log.Warn().Msg("authenticated transport lost")
	}
	s.transport = nil
	s.authenticated = false
	observability.RecordReconnect()
}

func (s *Session) scheduleRedial() {
	s.attempts++
	delay := NextBackoffDelay(s.cfg.Backoff, s.attempts, s.rng)
	s.log.Info().Int("attempt", s.attempts).Dur("delay", delay).Msg("reconnect scheduled")
	s.redial = time.AfterFunc(delay, s.redialNow)
}

func (s *Session) redialNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redial = nil
	if s.loggedOut || s.state != StateConnecting || s.transport != nil {
		return
	}
	s.dial()
}

func (s *Session) logout() {
	if s.redial != nil {
		s.redial.Stop()
		s.redial = nil
	}
	s.stopHeartbeat()
	if s.authenticated && s.transport != nil {
		if data, err := s.codec.Encode(wire.NewLogout()); err == nil {
			if err := s.write(data); err != nil {
				s.log.Debug().Err(err).Msg("logout request not sent")
			}
		}
	}
	s.authenticated = false
	if s.transport != nil {
		s.transport.close()
		return
	}
	// ждать нечего
	s.fire(evTransportClosed)
}

func (s *Session) finish() {
	s.transport = nil
	s.authenticated = false
	if !s.loggedOut {
		s.log.Warn().Msg("stopped after rejected logon")
		return
	}
	s.log.Info().Int("pending", s.outbox.Len()).Msg("session closed")
	observability.ForgetSession(s.id)
	s.notes.stop()
	if s.cancel != nil {
		s.cancel()
	}
	close(s.done)
}

func (s *Session) handleOpen(t *transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.transport {
		return
	}
	s.log.Info().Str("attempt", t.id).Msg("transport open")
	s.fire(evOpen)
	if s.state == StateConnectedUnauthenticated {
		s.notes.push(notification{kind: noteOpen})
	}
}

func (s *Session) handleClose(t *transport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.transport {
		return
	}
	info := CloseInfo{
		AttemptID:    t.id,
		Err:          err,
		Reconnecting: !s.loggedOut && s.state != StateClosing,
	}
	s.log.Info().Err(err).Str("attempt", t.id).Bool("reconnecting", info.Reconnecting).Msg("transport closed")
	s.notes.push(notification{kind: noteClose, info: info})
	s.fire(evTransportClosed)
}

func (s *Session) handleError(t *transport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.transport || s.loggedOut {
		return
	}
	s.log.Warn().Err(err).Str("attempt", t.id).Msg("transport error")
	s.notes.push(notification{kind: noteError, err: err})
}
