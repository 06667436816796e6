package session

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid screen transition")

// Screen is the view the user is looking at.
type Screen int

const (
	Menu Screen = iota
	Recording
	Transcribing
	Result
	History
	PDFTools
)

func (s Screen) String() string {
	switch s {
	case Menu:
		return "menu"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Result:
		return "result"
	case History:
		return "history"
	case PDFTools:
		return "pdf-tools"
	default:
		return fmt.Sprintf("screen(%d)", int(s))
	}
}

func (s Screen) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Event int

const (
	StartRecording Event = iota
	StopRecording
	CancelRecording
	Transcribed
	TranscriptionFailed
	ViewHistory
	OpenPDFTools
	Back
)

func (e Event) String() string {
	switch e {
	case StartRecording:
		return "start-recording"
	case StopRecording:
		return "stop-recording"
	case CancelRecording:
		return "cancel-recording"
	case Transcribed:
		return "transcribed"
	case TranscriptionFailed:
		return "transcription-failed"
	case ViewHistory:
		return "view-history"
	case OpenPDFTools:
		return "open-pdf-tools"
	case Back:
		return "back"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var transitions = map[Screen]map[Event]Screen{
	Menu: {
		StartRecording: Recording,
		ViewHistory:    History,
		OpenPDFTools:   PDFTools,
	},
	Recording: {
		StopRecording:   Transcribing,
		CancelRecording: Menu,
		Back:            Menu,
	},
	Transcribing: {
		Transcribed:         Result,
		TranscriptionFailed: Menu,
	},
	Result: {
		StartRecording: Recording,
		Back:           Menu,
	},
	History: {
		Back: Menu,
	},
	PDFTools: {
		Back: Menu,
	},
}

// Next returns the screen that follows from on event, or ErrInvalidTransition.
func Next(from Screen, event Event) (Screen, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
}
