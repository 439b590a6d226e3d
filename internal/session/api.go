package session

import "github.com/EgorLis/wslogon/internal/wire"

// SendPayload оборачивает body в прикладное сообщение и отправляет как Send.
func (s *Session) SendPayload(t wire.Template, body []byte, userMsg ...string) error {
	return s.Send(wire.NewApp(t, body, userMsg...))
}

// SendText отправляет text как payload прикладного сообщения.
func (s *Session) SendText(t wire.Template, text string) error {
	return s.SendPayload(t, []byte(text))
}
