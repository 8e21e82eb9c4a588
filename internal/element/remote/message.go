// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remote

// Outbound message types.
const (
	TypeSnapshot  = "snapshot"
	TypeSetSource = "set_source"
	TypeLoad      = "load"
	TypePlay      = "play"
	TypePause     = "pause"
	TypeSetMuted  = "set_muted"
	TypeDetach    = "detach"
	TypePong      = "pong"
	TypeError     = "error"
)

// Inbound message types.
const (
	TypeEvent = "event"
	TypePing  = "ping"
)

// Command is pushed to the browser. A snapshot carries the full desired
// state; the other types carry only the fields they change.
type Command struct {
	Type    string `json:"type"`
	Src     string `json:"src,omitempty"`
	Token   uint64 `json:"token,omitempty"`
	Muted   bool   `json:"muted,omitempty"`
	Playing bool   `json:"playing,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	ClientTime int64 `json:"clientTime,omitempty"`
	ServerTime int64 `json:"serverTime,omitempty"`
}

// Report is sent by the browser.
type Report struct {
	Type       string `json:"type"`
	Event      string `json:"event,omitempty"`
	Token      uint64 `json:"token,omitempty"`
	Detail     string `json:"detail,omitempty"`
	ClientTime int64  `json:"clientTime,omitempty"`
}

// State is the desired element state replayed on attach.
type State struct {
	Src     string `json:"src"`
	Token   uint64 `json:"token"`
	Muted   bool   `json:"muted"`
	Playing bool   `json:"playing"`
}

func (s State) snapshot() Command {
	return Command{Type: TypeSnapshot, Src: s.Src, Token: s.Token, Muted: s.Muted, Playing: s.Playing}
}
