package schedule

import "fmt"

// ParseError reports a malformed block in a programming document. It
// is fatal for that document; no retry.
type ParseError struct {
	Block string
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schedule: block %q: field %q: %s", e.Block, e.Field, e.Msg)
	}
	return fmt.Sprintf("schedule: block %q: %s", e.Block, e.Msg)
}

// ValidationError reports impossible or contradictory values in an
// otherwise well-formed daypart block.
type ValidationError struct {
	Daypart string
	Field   string
	Msg     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schedule: daypart %q: field %q: %s", e.Daypart, e.Field, e.Msg)
}
