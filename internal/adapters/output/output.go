package output

// Printer renders a command result for the user. Implementations decide the
// format; callers hand over plain result values.
type Printer interface {
	Print(v any) error
}
