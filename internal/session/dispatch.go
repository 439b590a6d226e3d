package session

import (
	"github.com/EgorLis/wslogon/internal/observability"
	"github.com/EgorLis/wslogon/internal/wire"
)

// handleFrame декодирует входящий кадр. Ответ на logon двигает автомат,
// каждое декодированное сообщение (включая служебные) уходит подписчику.
// Нераспознанные кадры отбрасываются.
func (s *Session) handleFrame(t *transport, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.transport {
		return
	}
	observability.RecordFrameIn()

	msg, err := s.codec.Decode(data)
	if err != nil {
		observability.RecordDecodeFailure()
		derr := &DecodeError{Size: len(data), Err: err}
		s.log.Warn().Err(err).Int("bytes", len(data)).Msg("drop undecodable frame")
		s.notes.push(notification{kind: noteError, err: derr})
		return
	}

	if code, ok := msg.LogonResult(); ok {
		observability.RecordLogonResult(code == wire.CodeOK)
		if code == wire.CodeOK {
			s.log.Info().Str("attempt", t.id).Msg("logon accepted")
			s.fire(evLogonAccepted)
		} else {
			lerr := &LogonError{Code: code, Text: msg.Text}
			s.log.Error().Uint32("code", code).Str("text", msg.Text).Msg("logon rejected")
			s.notes.push(notification{kind: noteError, err: lerr})
			s.fire(evLogonRejected)
		}
	} else if msg.IsLoggedOff() {
		// только уведомление: транспорт живёт, пока его не закроет сервер
		s.log.Warn().Str("text", msg.Text).Bool("authenticated", s.authenticated).Msg("logged off by gateway")
	}

	s.notes.push(notification{kind: noteMessage, msg: msg})
}
