package model

import "time"

// Exception represents a system-level error that must be persisted
// for auditing and debugging.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "signal_bridge"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "lifecycle"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "PlaceMarketOrder"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Extra context stored as JSON text
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
