package wire

// Template задаёт вид сообщения.
type Template uint32

const (
	TemplateLogon          Template = 10
	TemplateLogonResult    Template = 11
	TemplateLogout         Template = 12
	TemplateLogoutResult   Template = 13
	TemplateHeartbeat      Template = 18
	TemplateHeartbeatReply Template = 19
	TemplateLoggedOff      Template = 77
)

// CodeOK: rp_code успешного ответа.
const CodeOK uint32 = 0

// Message: один декодированный кадр. Какие поля заполнены, зависит от Template.
type Message struct {
	Template Template
	UserMsg  []string
	Code     uint32
	Text     string

	// только для logon
	User       string
	Password   string
	AppName    string
	AppVersion string

	Payload []byte
}

func NewLogon(user, password, appName, appVersion string) *Message {
	return &Message{
		Template:   TemplateLogon,
		User:       user,
		Password:   password,
		AppName:    appName,
		AppVersion: appVersion,
	}
}

func NewLogout() *Message {
	return &Message{Template: TemplateLogout}
}

func NewHeartbeat() *Message {
	return &Message{Template: TemplateHeartbeat}
}

// NewApp собирает прикладное сообщение с непрозрачным payload.
func NewApp(t Template, payload []byte, userMsg ...string) *Message {
	return &Message{Template: t, Payload: payload, UserMsg: userMsg}
}

// LogonResult возвращает код, если m является ответом на logon.
func (m *Message) LogonResult() (code uint32, ok bool) {
	if m == nil || m.Template != TemplateLogonResult {
		return 0, false
	}
	return m.Code, true
}

// IsLoggedOff сообщает, объявил ли сервер конец сессии.
func (m *Message) IsLoggedOff() bool {
	return m != nil && (m.Template == TemplateLoggedOff || m.Template == TemplateLogoutResult)
}

// IsControl сообщает, относится ли m к служебным сообщениям сессии
// (handshake, keep-alive), а не к прикладным.
func (m *Message) IsControl() bool {
	if m == nil {
		return false
	}
	switch m.Template {
	case TemplateLogon, TemplateLogonResult, TemplateLogout, TemplateLogoutResult,
		TemplateHeartbeat, TemplateHeartbeatReply, TemplateLoggedOff:
		return true
	}
	return false
}
