package blebox

// Command is a motor command code accepted by /s/{channel}/{command}.
type Command string

const (
	// CommandUp moves towards position 0 (open).
	CommandUp Command = "u"
	// CommandDown moves towards position 100 (closed).
	CommandDown     Command = "d"
	CommandStop     Command = "s"
	CommandNext     Command = "n"
	CommandFavorite Command = "f"
)

func (c Command) Valid() bool {
	switch c {
	case CommandUp, CommandDown, CommandStop, CommandNext, CommandFavorite:
		return true
	}
	return false
}
