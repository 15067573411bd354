package experiment

import "fmt"

// ConfigError rejects an invalid experiment definition before it reaches the
// draft state.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid experiment config: %s", e.Reason)
}

// StateError rejects an illegal lifecycle transition.
type StateError struct {
	From, To string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}
