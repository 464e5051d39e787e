// Package bridge turns native window messages into commands on the host connection
// and exposes the clipboard and hotkey operations the host drives remotely.
package bridge

import (
	"encoding/binary"
	"fmt"
)

// Code identifies an outbound command on the wire. Values are fixed: new
// commands take new numbers and existing numbers are never reused.
type Code uint8

const (
	// ReportBoot tells the host the guest is up. It is sent on every new
	// connection and again on resume, where it doubles as ResumedFromSuspend.
	ReportBoot Code = 1
	// 2 is reserved
	EnteringSuspend     Code = 3
	Pong                Code = 4
	HotKeyFired         Code = 5
	HotKeyBindingFailed Code = 6
	ClipboardText       Code = 7
	ClipboardImage      Code = 8
	ClipboardEmpty      Code = 9
	ClipboardFailed     Code = 10

	ResumedFromSuspend = ReportBoot
)

var codeNames = map[Code]string{
	ReportBoot:          "ReportBoot",
	EnteringSuspend:     "EnteringSuspend",
	Pong:                "Pong",
	HotKeyFired:         "HotKeyFired",
	HotKeyBindingFailed: "HotKeyBindingFailed",
	ClipboardText:       "ClipboardText",
	ClipboardImage:      "ClipboardImage",
	ClipboardEmpty:      "ClipboardEmpty",
	ClipboardFailed:     "ClipboardFailed",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// Command is one outbound message: a code and its optional payload
type Command struct {
	Code    Code
	Payload []byte
}

func (c Command) String() string {
	if len(c.Payload) == 0 {
		return c.Code.String()
	}
	return fmt.Sprintf("%s(%d bytes)", c.Code, len(c.Payload))
}

// HotKey reports that the chord registered under id was pressed
func HotKey(id uint32) Command {
	return Command{Code: HotKeyFired, Payload: binary.LittleEndian.AppendUint32(nil, id)}
}

func Booted() Command     { return Command{Code: ReportBoot} }
func Suspending() Command { return Command{Code: EnteringSuspend} }
func Resumed() Command    { return Command{Code: ResumedFromSuspend} }
func PongReply() Command  { return Command{Code: Pong} }

// BindingFailed carries a human readable reason a host-requested hotkey could not be bound
func BindingFailed(reason string) Command {
	return Command{Code: HotKeyBindingFailed, Payload: lengthPrefixed([]byte(reason))}
}

// ClipboardTextReply carries clipboard text as UTF-8
func ClipboardTextReply(text string) Command {
	return Command{Code: ClipboardText, Payload: lengthPrefixed([]byte(text))}
}

// ClipboardImageReply carries a PNG encoded clipboard image
func ClipboardImageReply(png []byte) Command {
	return Command{Code: ClipboardImage, Payload: lengthPrefixed(png)}
}

func ClipboardEmptyReply() Command { return Command{Code: ClipboardEmpty} }

// ClipboardFailedReply reports a clipboard operation that failed
func ClipboardFailedReply(reason string) Command {
	return Command{Code: ClipboardFailed, Payload: lengthPrefixed([]byte(reason))}
}

func lengthPrefixed(data []byte) []byte {
	buf := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	return append(buf, data...)
}
