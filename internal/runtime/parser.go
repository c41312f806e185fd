package runtime

import "strings"

// VerdictKind classifies an assistant reply.
type VerdictKind int

const (
	// NoDirective means the reply proposes nothing to run.
	NoDirective VerdictKind = iota
	// Directive means the reply proposes one command.
	Directive
	// Completed means the reply declares the task finished.
	Completed
)

func (k VerdictKind) String() string {
	switch k {
	case Directive:
		return "directive"
	case Completed:
		return "completed"
	default:
		return "no_directive"
	}
}

// Verdict is the parsed meaning of a reply. Command is set only for
// Directive.
type Verdict struct {
	Kind    VerdictKind
	Command string
}

// Parser turns free-form reply text into a Verdict.
type Parser interface {
	Parse(reply string) Verdict
}

// MarkerParser recognizes a completion marker anywhere in the reply and a
// directive marker that prefixes the command on its line. Completion takes
// precedence over a directive in the same reply.
type MarkerParser struct {
	CompletionMarker string
	DirectiveMarker  string
}

// DefaultParser uses the markers the directive prompt asks for.
var DefaultParser = MarkerParser{
	CompletionMarker: "DONE",
	DirectiveMarker:  "COMMAND:",
}

// Parse implements Parser. The command is the rest of the line after the
// first directive marker, trimmed. A marker with nothing after it is not a
// directive.
func (p MarkerParser) Parse(reply string) Verdict {
	if p.CompletionMarker != "" && strings.Contains(reply, p.CompletionMarker) {
		return Verdict{Kind: Completed}
	}
	i := strings.Index(reply, p.DirectiveMarker)
	if p.DirectiveMarker == "" || i < 0 {
		return Verdict{Kind: NoDirective}
	}
	line, _, _ := strings.Cut(reply[i+len(p.DirectiveMarker):], "\n")
	cmd := strings.TrimSpace(line)
	if cmd == "" {
		return Verdict{Kind: NoDirective}
	}
	return Verdict{Kind: Directive, Command: cmd}
}
