package session

import (
	"time"

	"github.com/EgorLis/wslogon/internal/wire"
)

// startHeartbeat шлёт heartbeat по авторизованному транспорту, чтобы шлюз
// не закрыл простаивающее соединение. Вызывается под s.mu.
func (s *Session) startHeartbeat() {
	if s.cfg.HeartbeatInterval <= 0 || s.transport == nil {
		return
	}
	s.stopHeartbeat()
	stop := make(chan struct{})
	s.heartbeatStop = stop
	t := s.transport

	go func() {
		tick := time.NewTicker(s.cfg.HeartbeatInterval)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				s.heartbeat(t)
			}
		}
	}()
}

func (s *Session) stopHeartbeat() {
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatStop = nil
	}
}

func (s *Session) heartbeat(t *transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.transport || !s.authenticated {
		return
	}
	data, err := s.codec.Encode(wire.NewHeartbeat())
	if err != nil {
		s.log.Error().Err(err).Msg("encode heartbeat")
		return
	}
	if err := s.write(data); err != nil {
		// readLoop заметит мёртвое соединение и переподключится
		s.log.Warn().Err(err).Str("attempt", t.id).Msg("heartbeat not sent")
	}
}
