// Package binproto encodes and decodes memcached binary protocol packets.
//
// Every packet is a fixed 24 byte header followed by extras, key and value:
//
//	0      magic (0x80 request, 0x81 response)
//	1      opcode
//	2..3   key length
//	4      extras length
//	5      data type (always 0)
//	6..7   vbucket id (request) or status (response)
//	8..11  total body length
//	12..15 opaque
//	16..23 cas
package binproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderLen = 24

	MagicRequest  byte = 0x80
	MagicResponse byte = 0x81

	// MaxKeyLen is the longest key memcached accepts.
	MaxKeyLen = 250
)

// Opcode is a binary protocol command.
type Opcode byte

const (
	OpGet     Opcode = 0x00
	OpSet     Opcode = 0x01
	OpDelete  Opcode = 0x04
	OpFlush   Opcode = 0x08
	OpNoop    Opcode = 0x0a
	OpVersion Opcode = 0x0b
	OpStat    Opcode = 0x10
)

// Status is the response status field.
type Status uint16

const (
	StatusOK             Status = 0x0000
	StatusKeyNotFound    Status = 0x0001
	StatusKeyExists      Status = 0x0002
	StatusValueTooLarge  Status = 0x0003
	StatusInvalidArgs    Status = 0x0004
	StatusItemNotStored  Status = 0x0005
	StatusNonNumeric     Status = 0x0006
	StatusUnknownCommand Status = 0x0081
	StatusOutOfMemory    Status = 0x0082
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusKeyNotFound:
		return "key not found"
	case StatusKeyExists:
		return "key exists"
	case StatusValueTooLarge:
		return "value too large"
	case StatusInvalidArgs:
		return "invalid arguments"
	case StatusItemNotStored:
		return "item not stored"
	case StatusNonNumeric:
		return "non-numeric value"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusOutOfMemory:
		return "out of memory"
	default:
		return fmt.Sprintf("status 0x%04x", uint16(s))
	}
}

var ErrBadMagic = errors.New("binproto: unexpected magic byte")

// Packet is one request or response.
type Packet struct {
	Magic  byte
	Opcode Opcode
	// Status is only meaningful on responses.
	Status Status
	Opaque uint32
	CAS    uint64
	Extras []byte
	Key    []byte
	Value  []byte
}

// Request builds a request packet.
func Request(op Opcode, key string, extras, value []byte) Packet {
	return Packet{Magic: MagicRequest, Opcode: op, Extras: extras, Key: []byte(key), Value: value}
}

// SetExtras returns the flags and expiration extras of a set request.
func SetExtras(flags, expiration uint32) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], flags)
	binary.BigEndian.PutUint32(b[4:8], expiration)
	return b
}

// Write encodes p to w in a single write.
func Write(w io.Writer, p Packet) error {
	if len(p.Key) > 0xffff || len(p.Extras) > 0xff {
		return fmt.Errorf("binproto: key or extras too long")
	}
	body := len(p.Extras) + len(p.Key) + len(p.Value)
	buf := make([]byte, HeaderLen+body)
	buf[0] = p.Magic
	buf[1] = byte(p.Opcode)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(p.Key)))
	buf[4] = byte(len(p.Extras))
	binary.BigEndian.PutUint16(buf[6:8], uint16(p.Status))
	binary.BigEndian.PutUint32(buf[8:12], uint32(body))
	binary.BigEndian.PutUint32(buf[12:16], p.Opaque)
	binary.BigEndian.PutUint64(buf[16:24], p.CAS)
	n := copy(buf[HeaderLen:], p.Extras)
	n += copy(buf[HeaderLen+n:], p.Key)
	copy(buf[HeaderLen+n:], p.Value)
	_, err := w.Write(buf)
	return err
}

// Read decodes one packet from r. It accepts either magic byte so the same
// codec serves clients and test servers.
func Read(r io.Reader) (Packet, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, err
	}
	if hdr[0] != MagicRequest && hdr[0] != MagicResponse {
		return Packet{}, ErrBadMagic
	}
	keyLen := int(binary.BigEndian.Uint16(hdr[2:4]))
	extrasLen := int(hdr[4])
	bodyLen := int(binary.BigEndian.Uint32(hdr[8:12]))
	if keyLen+extrasLen > bodyLen {
		return Packet{}, fmt.Errorf("binproto: body length %d shorter than key and extras", bodyLen)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, err
	}
	p := Packet{
		Magic:  hdr[0],
		Opcode: Opcode(hdr[1]),
		Status: Status(binary.BigEndian.Uint16(hdr[6:8])),
		Opaque: binary.BigEndian.Uint32(hdr[12:16]),
		CAS:    binary.BigEndian.Uint64(hdr[16:24]),
	}
	if extrasLen > 0 {
		p.Extras = body[:extrasLen]
	}
	if keyLen > 0 {
		p.Key = body[extrasLen : extrasLen+keyLen]
	}
	if rest := body[extrasLen+keyLen:]; len(rest) > 0 {
		p.Value = rest
	}
	return p, nil
}
