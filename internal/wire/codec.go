package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrMissingTemplate = errors.New("wire: missing template_id")
	ErrMalformed       = errors.New("wire: malformed message")
)

// Номера полей конверта.
const (
	fieldTemplateID protowire.Number = 1
	fieldUserMsg    protowire.Number = 2
	fieldRPCode     protowire.Number = 3
	fieldText       protowire.Number = 4
	fieldUser       protowire.Number = 10
	fieldPassword   protowire.Number = 11
	fieldAppName    protowire.Number = 12
	fieldAppVersion protowire.Number = 13
	fieldPayload    protowire.Number = 20
)

// Codec переводит сообщения в байты кадра и обратно.
type Codec interface {
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
}

// ProtoCodec кодирует сообщения в protobuf wire format.
type ProtoCodec struct{}

func (ProtoCodec) Encode(msg *Message) ([]byte, error) {
	if msg == nil || msg.Template == 0 {
		return nil, ErrMissingTemplate
	}
	b := protowire.AppendTag(nil, fieldTemplateID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Template))
	for _, s := range msg.UserMsg {
		b = appendString(b, fieldUserMsg, s)
	}
	if msg.Code != 0 {
		b = protowire.AppendTag(b, fieldRPCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(msg.Code))
	}
	b = appendString(b, fieldText, msg.Text)
	b = appendString(b, fieldUser, msg.User)
	b = appendString(b, fieldPassword, msg.Password)
	b = appendString(b, fieldAppName, msg.AppName)
	b = appendString(b, fieldAppVersion, msg.AppVersion)
	if len(msg.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, msg.Payload)
	}
	return b, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func (ProtoCodec) Decode(data []byte) (*Message, error) {
	msg := &Message{}
	seenTemplate := false
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldTemplateID || num == fieldRPCode):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			data = data[n:]
			if v > uint64(^uint32(0)) {
				return nil, fmt.Errorf("%w: field %d overflows uint32", ErrMalformed, num)
			}
			if num == fieldTemplateID {
				msg.Template = Template(v)
				seenTemplate = true
			} else {
				msg.Code = uint32(v)
			}

		case typ == protowire.BytesType && num == fieldPayload:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			data = data[n:]
			msg.Payload = append([]byte(nil), v...)

		case typ == protowire.BytesType && isStringField(num):
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			data = data[n:]
			msg.setString(num, v)

		default:
			// неизвестное поле
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if !seenTemplate || msg.Template == 0 {
		return nil, ErrMissingTemplate
	}
	return msg, nil
}

func isStringField(num protowire.Number) bool {
	switch num {
	case fieldUserMsg, fieldText, fieldUser, fieldPassword, fieldAppName, fieldAppVersion:
		return true
	}
	return false
}

func (m *Message) setString(num protowire.Number, v string) {
	switch num {
	case fieldUserMsg:
		m.UserMsg = append(m.UserMsg, v)
	case fieldText:
		m.Text = v
	case fieldUser:
		m.User = v
	case fieldPassword:
		m.Password = v
	case fieldAppName:
		m.AppName = v
	case fieldAppVersion:
		m.AppVersion = v
	}
}
