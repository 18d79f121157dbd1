package notification

// Phase is the half of a notification whose end triggers an alert.
type Phase int

const (
	PhaseWork Phase = iota + 1
	PhaseBreak
)

func (p Phase) String() string {
	switch p {
	case PhaseWork:
		return "work"
	case PhaseBreak:
		return "break"
	default:
		return "unknown"
	}
}

// Alert is the text sent when a phase ends. Summary and Body feed desktop
// banners and email subjects; Text is the one-line chat message.
type Alert struct {
	Phase   Phase
	Summary string
	Body    string
	Text    string
}

func AlertFor(p Phase) Alert {
	if p == PhaseBreak {
		return Alert{
			Phase:   PhaseBreak,
			Summary: "Break time done!",
			Body:    "Break time finished.\nNow back to work!",
			Text:    "break done. Get back to work",
		}
	}
	return Alert{
		Phase:   PhaseWork,
		Summary: "Work time done!",
		Body:    "Work time finished.\nNow take a rest!",
		Text:    "work done. Take a rest!",
	}
}
