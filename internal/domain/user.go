package domain

// Account records are owned by an external auth service and only read here.

// Manager is a manager account; only the station assignment matters to this service.
type Manager struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	City               string `json:"city"`
	ParkingStationName string `json:"parkingStationName"`
}

// UserProfile is the subset of a customer account shown on the ticket history.
type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	License  string `json:"license"`
}
