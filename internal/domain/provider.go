package domain

// ProviderProfile is a detailer's catalog entry. ID is the identity that owns
// the profile, so it doubles as Request.ProviderID.
type ProviderProfile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Phone       string   `json:"phone"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	Services    []string `json:"services"`
}
