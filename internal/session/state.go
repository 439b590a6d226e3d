package session

// State: состояние соединения и авторизации Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnectedUnauthenticated
	StateAuthenticated
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedUnauthenticated:
		return "connected_unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

type event int

const (
	evStart event = iota
	evOpen
	evLogonAccepted
	evLogonRejected
	evTransportClosed
	evUserClose
)

func (e event) String() string {
	switch e {
	case evStart:
		return "start"
	case evOpen:
		return "open"
	case evLogonAccepted:
		return "logon_accepted"
	case evLogonRejected:
		return "logon_rejected"
	case evTransportClosed:
		return "transport_closed"
	case evUserClose:
		return "user_close"
	default:
		return "unknown"
	}
}

type action int

const (
	actNone action = iota
	actDial
	actSendLogon
	actAuthenticate
	actCloseTransport
	actRedial
	actLogout
	actFinish
)

type stateEvent struct {
	from State
	ev   event
}

type transition struct {
	next State
	act  action
}

// transitions описывает весь автомат. Отсутствующие пары игнорируются.
//
// Закрытие транспорта в StateClosing никогда не ведёт к переподключению:
// это и logout пользователя, и отклонённый logon.
var transitions = map[stateEvent]transition{
	{StateDisconnected, evStart}: {StateConnecting, actDial},

	{StateConnecting, evOpen}:                        {StateConnectedUnauthenticated, actSendLogon},
	{StateConnectedUnauthenticated, evLogonAccepted}: {StateAuthenticated, actAuthenticate},
	{StateConnectedUnauthenticated, evLogonRejected}: {StateClosing, actCloseTransport},

	{StateConnecting, evTransportClosed}:               {StateConnecting, actRedial},
	{StateConnectedUnauthenticated, evTransportClosed}: {StateConnecting, actRedial},
	{StateAuthenticated, evTransportClosed}:            {StateConnecting, actRedial},

	{StateDisconnected, evUserClose}:             {StateClosing, actLogout},
	{StateConnecting, evUserClose}:               {StateClosing, actLogout},
	{StateConnectedUnauthenticated, evUserClose}: {StateClosing, actLogout},
	{StateAuthenticated, evUserClose}:            {StateClosing, actLogout},

	{StateClosing, evTransportClosed}: {StateDisconnected, actFinish},
}

func lookupTransition(from State, ev event) (transition, bool) {
	tr, ok := transitions[stateEvent{from: from, ev: ev}]
	return tr, ok
}
