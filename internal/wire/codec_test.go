package wire

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestLogonEncodeDecode(t *testing.T) {
	var c ProtoCodec
	b, err := c.Encode(NewLogon("u", "p", "app", "1.0"))
	if err != nil {
		t.Fatalf("encode logon: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("decode logon: %v", err)
	}
	if got.Template != TemplateLogon || got.User != "u" || got.Password != "p" ||
		got.AppName != "app" || got.AppVersion != "1.0" {
		t.Fatalf("unexpected logon: %+v", got)
	}
	if !got.IsControl() {
		t.Fatalf("logon should be a control message")
	}
}

func TestLogonResultCode(t *testing.T) {
	var c ProtoCodec
	for _, code := range []uint32{CodeOK, 7} {
		b, err := c.Encode(&Message{Template: TemplateLogonResult, Code: code, Text: "r"})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		rc, ok := got.LogonResult()
		if !ok || rc != code {
			t.Fatalf("code=%d: got rc=%d ok=%v", code, rc, ok)
		}
	}

	if _, ok := NewApp(100, nil).LogonResult(); ok {
		t.Fatalf("app message must not look like a logon result")
	}
}

func TestAppMessagePayloadAndUserMsg(t *testing.T) {
	var c ProtoCodec
	body := []byte{0x00, 0x01, 0xfe}
	b, err := c.Encode(NewApp(100, body, "req-1", "req-2"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Template != 100 || !bytes.Equal(got.Payload, body) {
		t.Fatalf("unexpected app message: %+v", got)
	}
	if len(got.UserMsg) != 2 || got.UserMsg[0] != "req-1" || got.UserMsg[1] != "req-2" {
		t.Fatalf("unexpected user_msg: %v", got.UserMsg)
	}
	if got.IsControl() || got.IsLoggedOff() {
		t.Fatalf("app message classified as control")
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, fieldTemplateID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(TemplateLoggedOff))
	b = protowire.AppendTag(b, 98, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 1)

	got, err := ProtoCodec{}.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsLoggedOff() {
		t.Fatalf("expected logged-off message, got %+v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrMissingTemplate},
		{name: "garbage", data: []byte{0xff, 0xff, 0xff}, want: ErrMalformed},
		{name: "truncated string", data: []byte{0x08, 0x64, 0x22, 0x05, 'a'}, want: ErrMalformed},
		{name: "no template", data: protowire.AppendString(protowire.AppendTag(nil, fieldText, protowire.BytesType), "x"), want: ErrMissingTemplate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ProtoCodec{}.Decode(tc.data)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEncodeRequiresTemplate(t *testing.T) {
	if _, err := (ProtoCodec{}).Encode(&Message{}); !errors.Is(err, ErrMissingTemplate) {
		t.Fatalf("expected ErrMissingTemplate, got %v", err)
	}
	if _, err := (ProtoCodec{}).Encode(nil); !errors.Is(err, ErrMissingTemplate) {
		t.Fatalf("expected ErrMissingTemplate for nil, got %v", err)
	}
}
