// Package booking owns the booking form: the draft being edited, its
// validation, local persistence and submission.
package booking

import (
	"encoding/json"
	"fmt"
	"time"

	// Region time zones must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// Location is the service region.
type Location string

const (
	LocationScottsdale Location = "scottsdale"
	LocationLosCabos   Location = "los_cabos"
)

// Locations lists the regions in display order.
var Locations = []Location{LocationScottsdale, LocationLosCabos}

// VehicleType is a fleet class.
type VehicleType string

const (
	VehicleEscalade     VehicleType = "escalade"
	VehicleSuburban     VehicleType = "suburban"
	VehicleSClass       VehicleType = "s_class"
	VehicleSprinter     VehicleType = "sprinter"
	VehicleSprinterLimo VehicleType = "sprinter_limo"
)

var allowedVehicles = map[Location][]VehicleType{
	LocationScottsdale: {VehicleEscalade, VehicleSuburban, VehicleSClass, VehicleSprinter},
	LocationLosCabos:   {VehicleSuburban, VehicleEscalade, VehicleSprinter, VehicleSprinterLimo},
}

// AllowedVehicles returns the fleet offered in loc; the first entry is the
// default.
func AllowedVehicles(loc Location) []VehicleType {
	return append([]VehicleType(nil), allowedVehicles[loc]...)
}

// DefaultVehicle is the preselected vehicle for loc.
func DefaultVehicle(loc Location) VehicleType {
	if v := allowedVehicles[loc]; len(v) > 0 {
		return v[0]
	}
	return VehicleEscalade
}

// ServiceType is the kind of ride.
type ServiceType string

const (
	ServiceAirportTransfer ServiceType = "airport_transfer"
	ServicePointToPoint    ServiceType = "point_to_point"
	ServiceHourly          ServiceType = "hourly"
	ServiceEvent           ServiceType = "event"
)

// ServiceTypes lists every service type.
var ServiceTypes = []ServiceType{ServiceAirportTransfer, ServicePointToPoint, ServiceHourly, ServiceEvent}

// DeparturePoint is where a Los Cabos ride starts.
type DeparturePoint string

const (
	DepartureSJDTerminal1 DeparturePoint = "sjd_terminal_1"
	DepartureSJDTerminal2 DeparturePoint = "sjd_terminal_2"
	DepartureSJDFBO       DeparturePoint = "sjd_fbo"
	DepartureCaboMarina   DeparturePoint = "cabo_marina"
)

var DeparturePoints = []DeparturePoint{DepartureSJDTerminal1, DepartureSJDTerminal2, DepartureSJDFBO, DepartureCaboMarina}

// DestinationType is the kind of Los Cabos drop-off.
type DestinationType string

const (
	DestinationHotel        DestinationType = "hotel"
	DestinationPrivateVilla DestinationType = "private_villa"
	DestinationResidence    DestinationType = "residence"
	DestinationMarina       DestinationType = "marina"
)

var DestinationTypes = []DestinationType{DestinationHotel, DestinationPrivateVilla, DestinationResidence, DestinationMarina}

const (
	MinGroupSize = 1
	MaxGroupSize = 14
)

// DefaultDuration is the ride length assumed until a route estimate lands.
const DefaultDuration = 60

var regionZones = map[Location]string{
	LocationScottsdale: "America/Phoenix",
	LocationLosCabos:   "America/Mazatlan",
}

// Zone returns the region's time zone; pickup times are entered in it.
func Zone(loc Location) *time.Location {
	if name, ok := regionZones[loc]; ok {
		if tz, err := time.LoadLocation(name); err == nil {
			return tz
		}
	}
	return time.UTC
}

// RegionDetails is the region-specific part of a draft. Exactly one
// variant exists per Location.
type RegionDetails interface {
	Location() Location
	isRegion()
}

// ScottsdaleDetails has no extra fields.
type ScottsdaleDetails struct{}

func (ScottsdaleDetails) Location() Location { return LocationScottsdale }
func (ScottsdaleDetails) isRegion()          {}

// LosCabosDetails carries the arrival logistics asked only in Los Cabos.
type LosCabosDetails struct {
	DeparturePoint  DeparturePoint  `json:"departure_point"`
	DestinationType DestinationType `json:"destination_type"`
	GroupSize       int             `json:"group_size"`
	RoundTrip       bool            `json:"round_trip"`
}

func (LosCabosDetails) Location() Location { return LocationLosCabos }
func (LosCabosDetails) isRegion()          {}

func validLocation(loc Location) bool {
	for _, l := range Locations {
		if l == loc {
			return true
		}
	}
	return false
}

func newRegion(loc Location) RegionDetails {
	if loc == LocationLosCabos {
		return LosCabosDetails{GroupSize: MinGroupSize}
	}
	return ScottsdaleDetails{}
}

// Draft is the in-progress booking.
type Draft struct {
	Location           Location
	PickupAddress      string
	DestinationAddress string
	PickupDate         string
	PickupTime         string
	VehicleType        VehicleType
	ServiceType        ServiceType
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	EstimatedDuration  int
	SpecialRequests    string
	Region             RegionDetails
}

// NewDraft returns a blank Scottsdale draft with defaults applied.
func NewDraft() Draft {
	return Draft{
		Location:          LocationScottsdale,
		VehicleType:       DefaultVehicle(LocationScottsdale),
		ServiceType:       ServiceAirportTransfer,
		EstimatedDuration: DefaultDuration,
		Region:            newRegion(LocationScottsdale),
	}
}

// LosCabos returns the Los Cabos details when that variant is active.
func (d Draft) LosCabos() (LosCabosDetails, bool) {
	lc, ok := d.Region.(LosCabosDetails)
	return lc, ok
}

type draftJSON struct {
	Location           Location        `json:"location"`
	PickupAddress      string          `json:"pickup_address"`
	DestinationAddress string          `json:"destination_address"`
	PickupDate         string          `json:"pickup_date"`
	PickupTime         string          `json:"pickup_time"`
	VehicleType        VehicleType     `json:"vehicle_type"`
	ServiceType        ServiceType     `json:"service_type"`
	CustomerName       string          `json:"customer_name"`
	CustomerEmail      string          `json:"customer_email"`
	CustomerPhone      string          `json:"customer_phone"`
	EstimatedDuration  int             `json:"estimated_duration"`
	SpecialRequests    string          `json:"special_requests,omitempty"`
	Region             json.RawMessage `json:"region,omitempty"`
}

// MarshalJSON writes the common fields plus the active variant under
// "region".
func (d Draft) MarshalJSON() ([]byte, error) {
	region := d.Region
	if region == nil {
		region = newRegion(d.Location)
	}
	raw, err := json.Marshal(region)
	if err != nil {
		return nil, err
	}
	return json.Marshal(draftJSON{
		Location:           d.Location,
		PickupAddress:      d.PickupAddress,
		DestinationAddress: d.DestinationAddress,
		PickupDate:         d.PickupDate,
		PickupTime:         d.PickupTime,
		VehicleType:        d.VehicleType,
		ServiceType:        d.ServiceType,
		CustomerName:       d.CustomerName,
		CustomerEmail:      d.CustomerEmail,
		CustomerPhone:      d.CustomerPhone,
		EstimatedDuration:  d.EstimatedDuration,
		SpecialRequests:    d.SpecialRequests,
		Region:             raw,
	})
}

// UnmarshalJSON picks the variant from "location". An unknown location
// keeps the common fields and falls back to the Scottsdale variant.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var in draftJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var region RegionDetails
	switch in.Location {
	case LocationScottsdale:
		region = ScottsdaleDetails{}
	case LocationLosCabos:
		lc := LosCabosDetails{GroupSize: MinGroupSize}
		if len(in.Region) > 0 && string(in.Region) != "null" {
			if err := json.Unmarshal(in.Region, &lc); err != nil {
				return fmt.Errorf("booking: region: %w", err)
			}
		}
		region = lc
	default:
		in.Location = LocationScottsdale
		region = ScottsdaleDetails{}
	}
	*d = Draft{
		Location:           in.Location,
		PickupAddress:      in.PickupAddress,
		DestinationAddress: in.DestinationAddress,
		PickupDate:         in.PickupDate,
		PickupTime:         in.PickupTime,
		VehicleType:        in.VehicleType,
		ServiceType:        in.ServiceType,
		CustomerName:       in.CustomerName,
		CustomerEmail:      in.CustomerEmail,
		CustomerPhone:      in.CustomerPhone,
		EstimatedDuration:  in.EstimatedDuration,
		SpecialRequests:    in.SpecialRequests,
		Region:             region,
	}
	return nil
}
