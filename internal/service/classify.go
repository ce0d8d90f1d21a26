package service

import (
	"regexp"
	"strings"
)

// Kind is the closed set of interpretations of submitted text.
type Kind int

const (
	KindPost Kind = iota
	KindDirectMessage
	KindFollow
)

func (k Kind) String() string {
	switch k {
	case KindDirectMessage:
		return "direct_message"
	case KindFollow:
		return "follow"
	default:
		return "post"
	}
}

// MarshalText lets Kind appear as "post" / "direct_message" / "follow" in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Command is the result of classifying submitted text. Handle is set for
// direct messages and follows; Body for posts and direct messages.
type Command struct {
	Kind   Kind
	Handle string
	Body   string
}

// followPrefix accepts "follow alice", "Follows alice", "FOLLOW alice".
var followPrefix = regexp.MustCompile(`(?i)^follows?\s`)

// Classify decides what submitted text means. It reads no state, so the same
// text always classifies the same way.
//
//	"D alice hello there" → DirectMessage{Handle: alice, Body: "hello there"}
//	"follow alice"        → Follow{Handle: alice}
//	anything else         → Post{Body: text}
//
// The direct-message prefix is case-sensitive; "d alice hi" is a post.
func Classify(text string) Command {
	text = strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(text, "D ") || strings.HasPrefix(text, "D\t"):
		fields := strings.Fields(text)
		cmd := Command{Kind: KindDirectMessage}
		if len(fields) > 1 {
			cmd.Handle = strings.TrimPrefix(fields[1], "@")
		}
		if len(fields) > 2 {
			cmd.Body = strings.Join(fields[2:], " ")
		}
		return cmd

	case followPrefix.MatchString(text):
		fields := strings.Fields(text)
		cmd := Command{Kind: KindFollow}
		if len(fields) > 1 {
			cmd.Handle = strings.TrimPrefix(fields[1], "@")
		}
		return cmd

	default:
		return Command{Kind: KindPost, Body: text}
	}
}
