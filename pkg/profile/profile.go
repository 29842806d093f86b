// Package profile stores calibration blobs so a user can skip calibration on
// the next run. Blobs are engine-defined and stored unmodified.
package profile

import (
	"errors"
	"time"

	"github.com/teslashibe/go-eyedid/pkg/engine"
)

// ErrNotFound is returned for an unknown profile ID.
var ErrNotFound = errors.New("profile: not found")

// Profile is one saved calibration.
type Profile struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name"`
	Points    engine.CalibrationPoints   `json:"points"`
	Accuracy  engine.CalibrationAccuracy `json:"accuracy"`
	Data      []float32                  `json:"data"`
	CreatedAt time.Time                  `json:"created_at"`
}

// Store persists profiles.
type Store interface {
	// Save stores p, assigning an ID and creation time if unset.
	Save(p *Profile) error
	Get(id string) (*Profile, error)
	// Latest returns the newest profile.
	Latest() (*Profile, error)
	// List returns every profile, newest first.
	List() ([]*Profile, error)
	Delete(id string) error
	Count() int
}
