// package models defines the data model for the playlist conversion worker
package models

import (
	"time"
)

// Model defines the base interface for the durable entities of the conversion history.
// Implementations are [ConversionRecord] and [TrackLog].
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Reader defines the read side of an append-only history store.
//
// There is no Update or Delete: history rows are written once.
type Reader[T Model] interface {
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}
