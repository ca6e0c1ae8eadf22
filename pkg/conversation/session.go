package conversation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-go-golems/mnemo/pkg/transcript"
)

// SessionIDLength is how many runes of the first message name a session.
const SessionIDLength = 30

// Session is the in-memory state the controller owns: the session name, the
// append-only message log and the inputs waiting for connectivity.
type Session struct {
	ID       string
	Messages []transcript.Message
	Queue    []string
}

func (s *Session) append(msgs ...transcript.Message) {
	s.Messages = append(s.Messages, msgs...)
}

// dropLast removes the last message. Only used to undo a user message whose
// reply could not be produced.
func (s *Session) dropLast() {
	if len(s.Messages) > 0 {
		s.Messages = s.Messages[:len(s.Messages)-1]
	}
}

func (s *Session) takeQueue() []string {
	q := s.Queue
	s.Queue = nil
	return q
}

func (s *Session) clone() Session {
	ret := Session{
		ID:       s.ID,
		Messages: transcript.CloneMessages(s.Messages),
	}
	if s.Queue != nil {
		ret.Queue = append([]string{}, s.Queue...)
	}
	return ret
}

// SessionIDFromInput derives a session name from a raw user message: its
// first SessionIDLength runes, with whitespace and path separators replaced
// by underscores. "." and ".." name directories, so they become "_" and "__".
func SessionIDFromInput(input string) string {
	input = strings.TrimSpace(input)
	if utf8.RuneCountInString(input) > SessionIDLength {
		input = string([]rune(input)[:SessionIDLength])
	}
	id := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '/', r == '\\', r == 0:
			return '_'
		default:
			return r
		}
	}, input)
	if id == "." || id == ".." {
		id = strings.Repeat("_", len(id))
	}
	return id
}
