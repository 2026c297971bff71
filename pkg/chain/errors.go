package chain

import "fmt"

// PortBindError is returned by Start when the listener cannot be bound, typically
// because the port is already in use.
type PortBindError struct {
	Addr string
	Port int
	Err  error
}

func (e *PortBindError) Error() string {
	return fmt.Sprintf("binding %s: %s", e.Addr, e.Err)
}

func (e *PortBindError) Unwrap() error {
	return e.Err
}
