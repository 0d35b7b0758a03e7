package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field names a form input. Values match the draft's JSON keys.
type Field string

const (
	FieldLocation           Field = "location"
	FieldPickupAddress      Field = "pickup_address"
	FieldDestinationAddress Field = "destination_address"
	FieldPickupDate         Field = "pickup_date"
	FieldPickupTime         Field = "pickup_time"
	FieldVehicleType        Field = "vehicle_type"
	FieldServiceType        Field = "service_type"
	FieldCustomerName       Field = "customer_name"
	FieldCustomerEmail      Field = "customer_email"
	FieldCustomerPhone      Field = "customer_phone"
	FieldEstimatedDuration  Field = "estimated_duration"
	FieldSpecialRequests    Field = "special_requests"
	FieldDeparturePoint     Field = "departure_point"
	FieldDestinationType    Field = "destination_type"
	FieldGroupSize          Field = "group_size"
	FieldRoundTrip          Field = "round_trip"
)

var (
	// ErrUnknownField is returned for a field name the form does not have.
	ErrUnknownField = errors.New("booking: unknown field")
	// ErrFieldNotApplicable is returned when a region-specific field is set
	// while another region is selected.
	ErrFieldNotApplicable = errors.New("booking: field does not apply to the selected location")
	// ErrInvalidValue is returned when an input cannot be parsed or names a
	// location the service does not cover.
	ErrInvalidValue = errors.New("booking: invalid value")
)

// Set applies one input to the draft. Changing the location swaps the
// region variant and resets the vehicle to that region's default.
func (d *Draft) Set(field Field, value string) error {
	switch field {
	case FieldLocation:
		loc := Location(strings.TrimSpace(value))
		if !validLocation(loc) {
			return fmt.Errorf("%w: %s", ErrInvalidValue, field)
		}
		if loc != d.Location {
			d.Location = loc
			d.Region = newRegion(loc)
			d.VehicleType = DefaultVehicle(loc)
		}
	case FieldPickupAddress:
		d.PickupAddress = value
	case FieldDestinationAddress:
		d.DestinationAddress = value
	case FieldPickupDate:
		d.PickupDate = strings.TrimSpace(value)
	case FieldPickupTime:
		d.PickupTime = strings.TrimSpace(value)
	case FieldVehicleType:
		d.VehicleType = VehicleType(strings.TrimSpace(value))
	case FieldServiceType:
		d.ServiceType = ServiceType(strings.TrimSpace(value))
	case FieldCustomerName:
		d.CustomerName = value
	case FieldCustomerEmail:
		d.CustomerEmail = strings.TrimSpace(value)
	case FieldCustomerPhone:
		d.CustomerPhone = value
	case FieldSpecialRequests:
		d.SpecialRequests = value
	case FieldEstimatedDuration:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidValue, field)
		}
		d.EstimatedDuration = n
	case FieldDeparturePoint, FieldDestinationType, FieldGroupSize, FieldRoundTrip:
		return d.setLosCabos(field, value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

func (d *Draft) setLosCabos(field Field, value string) error {
	lc, ok := d.LosCabos()
	if !ok {
		return fmt.Errorf("%w: %s", ErrFieldNotApplicable, field)
	}
	value = strings.TrimSpace(value)
	switch field {
	case FieldDeparturePoint:
		lc.DeparturePoint = DeparturePoint(value)
	case FieldDestinationType:
		lc.DestinationType = DestinationType(value)
	case FieldGroupSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidValue, field)
		}
		lc.GroupSize = n
	case FieldRoundTrip:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidValue, field)
		}
		lc.RoundTrip = b
	}
	d.Region = lc
	return nil
}
