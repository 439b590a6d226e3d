// Package wire описывает конверт кадра для обмена со шлюзом и его кодек
// в protobuf wire format.
//
// В каждом кадре есть template_id (поле 1), он задаёт вид сообщения.
// Logon (10) несёт user/password/app_name/app_version, ответ на logon (11)
// несёт rp_code, 0 означает успех. Шаблон 77 означает принудительный logoff со
// стороны сервера. Любой шаблон вне служебного набора считается прикладным,
// его тело передаётся как есть в payload (поле 20).
//
// Пример:
//
//	var c wire.ProtoCodec
//	b, _ := c.Encode(wire.NewApp(100, body, "req-1"))
//	msg, err := c.Decode(b)
package wire
