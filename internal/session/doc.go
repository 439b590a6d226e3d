// Package session реализует WebSocket-сессию с обязательным logon, которая
// переживает обрывы транспорта.
//
// Session подключается к endpoint, первым кадром каждого соединения шлёт
// logon и ждёт ответа. Пока не пришёл ответ с кодом 0, сообщения из Send
// копятся в Outbox; после успешного logon очередь уходит в порядке отправки.
// При неожиданном закрытии транспорт выбрасывается, очередь сохраняется,
// переподключение идёт с backoff. Отклонённый logon закрывает транспорт без
// переподключения: сессия возвращается в StateDisconnected, решение о новом
// Start за вызывающим. Close делает logout и окончателен.
//
// События (open, каждое сообщение, close, error) получает один Subscriber,
// строго по порядку, в горутине сессии.
//
// Пример:
//
//	s, err := session.New(session.Config{
//		Endpoint:    "wss://gateway.example.com/ws",
//		Credentials: session.Credentials{User: "u", Password: "p", AppName: "app", AppVersion: "1.0"},
//	})
//	if err != nil { log.Fatal(err) }
//	s.Subscribe(session.SubscriberFuncs{
//		Message: func(m *wire.Message) { fmt.Println(m.Template) },
//	})
//	if err := s.Start(ctx); err != nil { log.Fatal(err) }
//	defer s.Close()
//
//	_ = s.SendText(100, "hello") // ждёт в очереди до успешного logon
package session
