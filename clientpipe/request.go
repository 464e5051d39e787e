package clientpipe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// RequestKind identifies a host to guest request on the wire
type RequestKind uint8

const (
	Ping              RequestKind = 1
	RegisterHotKey    RequestKind = 2
	ReleaseModifiers  RequestKind = 3
	GetClipboard      RequestKind = 4
	SetClipboardText  RequestKind = 5
	SetClipboardImage RequestKind = 6
	UnregisterHotKey  RequestKind = 7
)

func (k RequestKind) String() string {
	switch k {
	case Ping:
		return "Ping"
	case RegisterHotKey:
		return "RegisterHotKey"
	case ReleaseModifiers:
		return "ReleaseModifiers"
	case GetClipboard:
		return "GetClipboard"
	case SetClipboardText:
		return "SetClipboardText"
	case SetClipboardImage:
		return "SetClipboardImage"
	case UnregisterHotKey:
		return "UnregisterHotKey"
	default:
		return fmt.Sprintf("RequestKind(%d)", uint8(k))
	}
}

// ClipboardFormat selects the representation GetClipboard asks for
type ClipboardFormat uint8

const (
	FormatText  ClipboardFormat = 0
	FormatImage ClipboardFormat = 1
)

// MaxPayload bounds length-prefixed request payloads
const MaxPayload = 64 << 20

var (
	// ErrUnknownRequest means the stream can no longer be parsed:
	// the payload length of an unknown request is unknown too.
	ErrUnknownRequest = errors.New("unknown request")

	ErrPayloadTooLarge = errors.New("request payload too large")
)

// Request is one decoded host request. Which fields are set depends on Kind:
// ID for hotkey requests, Combo for RegisterHotKey, Format for GetClipboard,
// Data for the SetClipboard requests (UTF-8 text or PNG).
type Request struct {
	Kind   RequestKind
	ID     uint32
	Combo  string
	Format ClipboardFormat
	Data   []byte
}

// ReadRequest decodes the next request from r
func ReadRequest(r io.Reader) (Request, error) {
	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return Request{}, err
	}

	req := Request{Kind: RequestKind(code[0])}
	var err error
	switch req.Kind {
	case Ping, ReleaseModifiers:
	case RegisterHotKey:
		if req.ID, err = readUint32(r); err != nil {
			break
		}
		var combo []byte
		combo, err = readBlob(r)
		req.Combo = string(combo)
	case UnregisterHotKey:
		req.ID, err = readUint32(r)
	case GetClipboard:
		var format [1]byte
		_, err = io.ReadFull(r, format[:])
		req.Format = ClipboardFormat(format[0])
	case SetClipboardText, SetClipboardImage:
		req.Data, err = readBlob(r)
	default:
		return Request{}, fmt.Errorf("%w: code %d", ErrUnknownRequest, code[0])
	}

	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Request{}, fmt.Errorf("failed to read %s: %w", req.Kind, err)
	}
	return req, nil
}

// AppendTo appends the wire form of req to buf
func (req Request) AppendTo(buf []byte) []byte {
	buf = append(buf, byte(req.Kind))
	switch req.Kind {
	case RegisterHotKey:
		buf = binary.LittleEndian.AppendUint32(buf, req.ID)
		buf = appendBlob(buf, []byte(req.Combo))
	case UnregisterHotKey:
		buf = binary.LittleEndian.AppendUint32(buf, req.ID)
	case GetClipboard:
		buf = append(buf, byte(req.Format))
	case SetClipboardText, SetClipboardImage:
		buf = appendBlob(buf, req.Data)
	}
	return buf
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readBlob(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func appendBlob(buf, data []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}
