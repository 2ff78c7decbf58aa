package models

import "fmt"

// ExitStatus is returned by a kernel when the guest program terminates.
type ExitStatus int

func (e ExitStatus) Error() string {
	return fmt.Sprintf("guest exited with status %d", int(e))
}
