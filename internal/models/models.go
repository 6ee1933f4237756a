package models

import "time"

type VehicleClass string

const (
	VehicleStandard VehicleClass = "standard"
	VehiclePremium  VehicleClass = "premium"
	VehicleSUV      VehicleClass = "suv"
)

type RideStatus string

const (
	RideRequested RideStatus = "requested"
	RideAccepted  RideStatus = "accepted"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Location is an address with optional coordinates.
type Location struct {
	Address string
	Lat     *float64
	Lng     *float64
}

// Coord returns the coordinates when both are set.
func (l Location) Coord() (Coord, bool) {
	if l.Lat == nil || l.Lng == nil {
		return Coord{}, false
	}
	return Coord{Lat: *l.Lat, Lon: *l.Lng}, true
}

type User struct {
	ID           int64  `json:"id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"-"`
	JobTitle     string `json:"job_title"`
	MemberType   string `json:"member_type"`
}

type SecuritySettings struct {
	UserID            int64     `json:"-"`
	EnableDriverCalls bool      `json:"enable_driver_calls"`
	ShareLiveLocation bool      `json:"share_live_location"`
	PrivateMode       bool      `json:"private_mode"`
	UpdatedAt         time.Time `json:"-"`
}

type Driver struct {
	ID            int64
	FullName      string
	Phone         string
	Available     bool
	CurrentRideID *int64
	CreatedAt     time.Time
}

type Vehicle struct {
	ID          int64
	DriverID    int64
	Make        string
	Model       string
	PlateNumber string
	Class       VehicleClass
}

// Candidate is an eligible driver together with the vehicle that matched.
type Candidate struct {
	Driver  Driver
	Vehicle Vehicle
}

// DriverSummary is the public view of an assigned driver.
type DriverSummary struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	VehicleID   int64  `json:"vehicle_id"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	PlateNumber string `json:"plate_number"`
}

func (c Candidate) Summary() DriverSummary {
	return DriverSummary{
		ID:          c.Driver.ID,
		FullName:    c.Driver.FullName,
		Phone:       c.Driver.Phone,
		VehicleID:   c.Vehicle.ID,
		Make:        c.Vehicle.Make,
		Model:       c.Vehicle.Model,
		PlateNumber: c.Vehicle.PlateNumber,
	}
}

type Ride struct {
	ID              int64        `json:"id"`
	UserID          int64        `json:"user_id"`
	Pickup          Location     `json:"-"`
	Destination     Location     `json:"-"`
	Class           VehicleClass `json:"ride_type"`
	Fare            int64        `json:"fare"`
	Status          RideStatus   `json:"status"`
	ScheduledTime   *time.Time   `json:"scheduled_time,omitempty"`
	DriverID        *int64       `json:"driver_id,omitempty"`
	VehicleID       *int64       `json:"vehicle_id,omitempty"`
	PaymentIntentID string       `json:"-"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// DriverPosition is a location report from a driver app.
type DriverPosition struct {
	DriverID int64     `json:"driver_id"`
	Loc      Coord     `json:"loc"`
	Updated  time.Time `json:"updated"`
}

// Assignment is pushed to a driver when a ride is assigned to them.
type Assignment struct {
	Type               string       `json:"type"`
	RideID             int64        `json:"ride_id"`
	PickupAddress      string       `json:"pickup_address"`
	DestinationAddress string       `json:"destination_address"`
	Class              VehicleClass `json:"ride_type"`
	Fare               int64        `json:"fare"`
	ScheduledTime      *time.Time   `json:"scheduled_time,omitempty"`
}

// RideEvent is published to the ride events topic.
type RideEvent struct {
	Type     string       `json:"type"`
	RideID   int64        `json:"ride_id"`
	UserID   int64        `json:"user_id"`
	Status   RideStatus   `json:"status"`
	Class    VehicleClass `json:"ride_type"`
	Fare     int64        `json:"fare"`
	DriverID *int64       `json:"driver_id,omitempty"`
	At       time.Time    `json:"at"`
}
