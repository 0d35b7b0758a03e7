package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/internal/validation"
)

// MsgCorrectErrors is the form-level message shown with field errors.
const MsgCorrectErrors = "Please correct the errors below."

// ValidationError lists the fields that failed, with their messages.
type ValidationError struct {
	Fields map[Field]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: %d invalid fields", len(e.Fields))
}

// Validate checks every required field and the active region's fields.
// The pickup date is compared with today in the region's time zone.
func Validate(d Draft, now time.Time) map[Field]string {
	errs := make(map[Field]string)
	check := func(f Field, ok bool, msg string) {
		if _, seen := errs[f]; !seen && !ok {
			errs[f] = msg
		}
	}

	check(FieldLocation, validation.OneOf(d.Location, Locations), validation.MsgOption)
	check(FieldPickupAddress, validation.Required(d.PickupAddress), validation.MsgRequired)
	check(FieldDestinationAddress, validation.Required(d.DestinationAddress), validation.MsgRequired)

	check(FieldPickupDate, validation.Required(d.PickupDate), validation.MsgRequired)
	if _, err := time.Parse(validation.DateLayout, d.PickupDate); err != nil {
		check(FieldPickupDate, false, validation.MsgDate)
	}
	check(FieldPickupDate, validation.DateNotPast(d.PickupDate, now.In(Zone(d.Location))), validation.MsgDatePast)

	check(FieldPickupTime, validation.Required(d.PickupTime), validation.MsgRequired)
	check(FieldPickupTime, validation.Time24(d.PickupTime), validation.MsgTime)

	check(FieldVehicleType, d.VehicleType != "", validation.MsgRequired)
	check(FieldVehicleType, validation.OneOf(d.VehicleType, allowedVehicles[d.Location]), validation.MsgOption)
	check(FieldServiceType, validation.OneOf(d.ServiceType, ServiceTypes), validation.MsgOption)

	check(FieldCustomerName, validation.Required(d.CustomerName), validation.MsgRequired)
	check(FieldCustomerEmail, validation.Required(d.CustomerEmail), validation.MsgRequired)
	check(FieldCustomerEmail, validation.Email(d.CustomerEmail), validation.MsgEmail)
	check(FieldCustomerPhone, validation.Required(d.CustomerPhone), validation.MsgRequired)
	check(FieldCustomerPhone, validation.Phone(d.CustomerPhone), validation.MsgPhone)

	check(FieldEstimatedDuration, d.EstimatedDuration > 0, "Please enter a duration in minutes")

	if lc, ok := d.LosCabos(); ok {
		check(FieldDeparturePoint, validation.OneOf(lc.DeparturePoint, DeparturePoints), validation.MsgOption)
		check(FieldDestinationType, validation.OneOf(lc.DestinationType, DestinationTypes), validation.MsgOption)
		check(FieldGroupSize, lc.GroupSize >= MinGroupSize && lc.GroupSize <= MaxGroupSize,
			fmt.Sprintf("Group size must be between %d and %d", MinGroupSize, MaxGroupSize))
	}
	return errs
}

// ToWire converts a valid draft into the create-booking request. The
// pickup date and time are read in the region's zone and sent as UTC.
func ToWire(d Draft) (gateway.CreateBookingRequest, error) {
	pickup, err := time.ParseInLocation(validation.DateLayout+" 15:04",
		strings.TrimSpace(d.PickupDate)+" "+strings.TrimSpace(d.PickupTime), Zone(d.Location))
	if err != nil {
		return gateway.CreateBookingRequest{}, fmt.Errorf("booking: pickup datetime: %w", err)
	}
	req := gateway.CreateBookingRequest{
		Location:          string(d.Location),
		PickupLocation:    strings.TrimSpace(d.PickupAddress),
		DropoffLocation:   strings.TrimSpace(d.DestinationAddress),
		PickupDatetime:    pickup.UTC().Format(time.RFC3339),
		VehicleType:       string(d.VehicleType),
		ServiceType:       string(d.ServiceType),
		CustomerName:      strings.TrimSpace(d.CustomerName),
		CustomerEmail:     strings.TrimSpace(d.CustomerEmail),
		CustomerPhone:     validation.NormalizePhone(d.CustomerPhone),
		EstimatedDuration: d.EstimatedDuration,
		SpecialRequests:   strings.TrimSpace(d.SpecialRequests),
	}
	if lc, ok := d.LosCabos(); ok {
		roundTrip := lc.RoundTrip
		req.DeparturePoint = string(lc.DeparturePoint)
		req.DestinationType = string(lc.DestinationType)
		req.GroupSize = lc.GroupSize
		req.RoundTrip = &roundTrip
	}
	return req, nil
}
