package annotation

import "fmt"

// ErrInvalidGeometry rejects boxes with non-positive, NaN, or infinite
// dimensions at the store boundary. Such boxes are never stored.
var ErrInvalidGeometry = fmt.Errorf("annotation: invalid box geometry")

// NotFoundError reports an operation referencing an annotation id that
// is not present in the store.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("annotation: id %d not found", e.ID)
}
