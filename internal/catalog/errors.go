package catalog

import "fmt"

// PartialWriteError reports that a movie row may have been persisted while its
// genre associations were not: the rollback after a failed association insert
// failed too, or the commit outcome is unknown.
type PartialWriteError struct {
	MovieID int64
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("catalog: partial write for movie %d: %v", e.MovieID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
