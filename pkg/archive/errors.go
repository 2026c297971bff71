package archive

import "fmt"

// ExtractionError is returned when a snapshot archive cannot be decompressed into its
// destination: the archive is missing or corrupt, or the destination is not writable.
type ExtractionError struct {
	Archive string
	Dest    string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s into %s: %s", e.Archive, e.Dest, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
