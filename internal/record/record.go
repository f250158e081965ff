// Package record defines the typed vehicle listing shapes and the strict
// row validation that produces them.
package record

import (
	"fmt"
	"time"
)

// ValidationError reports why a row was rejected. Validation is atomic: the
// first failing field discards the whole row.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s (value: %v)", e.Field, e.Reason, e.Value)
}

// ListingInput is the identity-free shape built from one normalized CSV row.
// It deliberately has no ID field: identity is assigned by storage on insert,
// never taken from input.
type ListingInput struct {
	URL          string
	Region       string
	RegionURL    *string
	Price        *int64
	Year         *int
	Manufacturer *string
	Model        *string
	Condition    *string
	Cylinders    *int
	Fuel         *string
	Odometer     *float64
	TitleStatus  *string
	Transmission *string
	VIN          *string
	Drive        *string
	Size         *string
	Type         *string
	PaintColor   *string
	ImageURL     *string
	Description  *string
	County       *string
	State        *string
	Lat          *float64
	Long         *float64
	PostingDate  *time.Time
}

// Listing is the persisted shape. ID is zero until the batch inserter commits
// the record and scans back the storage-generated identity.
type Listing struct {
	ID int64
	ListingInput
}

// Promote lifts a validated input into the persisted shape. The ID starts at
// zero and is only ever set by storage.
func (in *ListingInput) Promote() *Listing {
	return &Listing{ListingInput: *in}
}

// Allowed values for the enumerated columns of the listings dataset.
var (
	ConditionValues    = []string{"new", "like new", "excellent", "good", "fair", "salvage"}
	FuelValues         = []string{"gas", "diesel", "electric", "hybrid", "other"}
	TitleStatusValues  = []string{"clean", "lien", "missing", "parts only", "rebuilt", "salvage"}
	TransmissionValues = []string{"automatic", "manual", "other"}
	DriveValues        = []string{"4wd", "fwd", "rwd"}
	SizeValues         = []string{"compact", "full-size", "mid-size", "sub-compact"}
	TypeValues         = []string{"SUV", "bus", "convertible", "coupe", "hatchback", "mini-van", "offroad", "other", "pickup", "sedan", "truck", "van", "wagon"}
)

// Plausible model-year bounds for a vehicle listing.
const (
	minYear = 1880
	maxYear = 2100
)

// postingDateLayouts covers the timestamp formats seen in the dataset.
var postingDateLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseRow converts a normalized row into a ListingInput, coercing every field
// to its declared type. Any coercion failure, out-of-range value, missing
// required field, or caller-supplied id fails the whole row.
func ParseRow(row map[string]interface{}) (*ListingInput, error) {
	// Identity must come from storage; a supplied id is rejected outright.
	if v, ok := row["id"]; ok && v != nil {
		return nil, &ValidationError{Field: "id", Value: v, Reason: "identity is storage-assigned and must not be supplied"}
	}

	in := &ListingInput{}

	url, verr := requiredString(row, "url")
	if verr != nil {
		return nil, verr
	}
	in.URL = url

	region, verr := requiredString(row, "region")
	if verr != nil {
		return nil, verr
	}
	in.Region = region

	if in.RegionURL, verr = optionalString(row, "region_url"); verr != nil {
		return nil, verr
	}
	if in.Price, verr = optionalInt64(row, "price"); verr != nil {
		return nil, verr
	}
	if in.Year, verr = optionalIntInRange(row, "year", minYear, maxYear); verr != nil {
		return nil, verr
	}
	if in.Manufacturer, verr = optionalString(row, "manufacturer"); verr != nil {
		return nil, verr
	}
	if in.Model, verr = optionalString(row, "model"); verr != nil {
		return nil, verr
	}
	if in.Condition, verr = optionalEnum(row, "condition", ConditionValues); verr != nil {
		return nil, verr
	}
	if in.Cylinders, verr = optionalCount(row, "cylinders"); verr != nil {
		return nil, verr
	}
	if in.Fuel, verr = optionalEnum(row, "fuel", FuelValues); verr != nil {
		return nil, verr
	}
	if in.Odometer, verr = optionalFloat(row, "odometer"); verr != nil {
		return nil, verr
	}
	if in.TitleStatus, verr = optionalEnum(row, "title_status", TitleStatusValues); verr != nil {
		return nil, verr
	}
	if in.Transmission, verr = optionalEnum(row, "transmission", TransmissionValues); verr != nil {
		return nil, verr
	}
	if in.VIN, verr = optionalString(row, "VIN"); verr != nil {
		return nil, verr
	}
	if in.Drive, verr = optionalEnum(row, "drive", DriveValues); verr != nil {
		return nil, verr
	}
	if in.Size, verr = optionalEnum(row, "size", SizeValues); verr != nil {
		return nil, verr
	}
	if in.Type, verr = optionalEnum(row, "type", TypeValues); verr != nil {
		return nil, verr
	}
	if in.PaintColor, verr = optionalString(row, "paint_color"); verr != nil {
		return nil, verr
	}
	if in.ImageURL, verr = optionalString(row, "image_url"); verr != nil {
		return nil, verr
	}
	if in.Description, verr = optionalString(row, "description"); verr != nil {
		return nil, verr
	}
	if in.County, verr = optionalString(row, "county"); verr != nil {
		return nil, verr
	}
	if in.State, verr = optionalString(row, "state"); verr != nil {
		return nil, verr
	}
	if in.Lat, verr = optionalFloatInRange(row, "lat", -90, 90); verr != nil {
		return nil, verr
	}
	if in.Long, verr = optionalFloatInRange(row, "long", -180, 180); verr != nil {
		return nil, verr
	}
	if in.PostingDate, verr = optionalTime(row, "posting_date"); verr != nil {
		return nil, verr
	}

	return in, nil
}

// Validate runs the full two-stage check: build the identity-free input shape,
// then promote it to the persisted shape.
func Validate(row map[string]interface{}) (*Listing, error) {
	in, err := ParseRow(row)
	if err != nil {
		return nil, err
	}
	return in.Promote(), nil
}
