package render

// Action is a playback command bound to a key.
type Action int

const (
	ActNone Action = iota
	ActNextSong
	ActPrevSong
	ActPlay
	ActStop
	ActNextEffect
	ActPrevEffect
	ActPlayEffect
	ActQuit
)

var actionNames = [...]string{"none", "next", "prev", "play", "stop", "sfx-next", "sfx-prev", "sfx", "quit"}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "unknown"
	}
	return actionNames[a]
}

// ActionForRune maps the player's key bindings.
func ActionForRune(r rune) Action {
	switch r {
	case 'n', 'N':
		return ActNextSong
	case 'p', 'P':
		return ActPrevSong
	case '\r', '\n':
		return ActPlay
	case 's', 'S':
		return ActStop
	case ']':
		return ActNextEffect
	case '[':
		return ActPrevEffect
	case ' ':
		return ActPlayEffect
	case 'q', 'Q':
		return ActQuit
	}
	return ActNone
}
