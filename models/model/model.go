// Package model - Shared definitions for detection models.
package model

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameSSD300 is the name of the SSD300 detection model.
	ModelNameSSD300 Name = "ssd300"
)

// Family is the dataset family a model's class axis is aligned with.
type Family string

const (
	// ModelFamilyCOCO is the COCO model family (80 classes + background).
	ModelFamilyCOCO Family = "coco"
)
