package entities

type BookingEmailData struct {
	UserName           string
	BookingID          int64
	SpaceNumber        string
	SpaceLocation      string
	VehicleModel       string
	VehiclePlate       string
	StartTimeFormatted string
	EndTimeFormatted   string
	Status             string
	CurrentYear        int
}
