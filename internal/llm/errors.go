package llm

import "fmt"

// Error is a failed backend call. Status carries the HTTP status when
// the provider answered; it is zero for transport failures.
type Error struct {
	Provider string
	Model    string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Model, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Model, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Provider, e.Model, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }
