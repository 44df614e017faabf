package service

import (
	"CrowdedCOT/internal/domain/models"
)

// PositioningEngine derives crowding metrics from a table of observations.
type PositioningEngine interface {
	Compute(t *models.Table) (*models.DerivedTable, error)
}
