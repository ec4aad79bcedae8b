package api

// TokenPair is returned by every sign-in endpoint.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
}

// FoodItem is a listing as served by /fooditems/. Prices are decimal strings.
type FoodItem struct {
	ItemID            string  `json:"item_id"`
	Title             string  `json:"title"`
	Address           string  `json:"address"`
	PickupStart       string  `json:"pickup_start"`
	PickupEnd         string  `json:"pickup_end"`
	Image             string  `json:"image"`
	Rating            float64 `json:"rating"`
	RatingCount       int     `json:"rating_count"`
	AvailableQuantity int     `json:"available_quantity"`
	Price             string  `json:"price"`
	PriceBefore       string  `json:"price_before"`
	StoreName         string  `json:"store_name"`
}

// FoodItemQuery filters the listing. Zero fields are not sent.
type FoodItemQuery struct {
	Category string
	Query    string
	Lat      *float64
	Lng      *float64
}

type Reservation struct {
	FoodItem    string `json:"food_item"`
	Quantity    int    `json:"quantity"`
	ReservedAt  string `json:"reserved_at,omitempty"`
	IsCollected bool   `json:"is_collected"`
}

type JobStatus string

const (
	JobApplied   JobStatus = "applied"
	JobInterview JobStatus = "interview"
	JobOffer     JobStatus = "offer"
	JobRejected  JobStatus = "rejected"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobApplied, JobInterview, JobOffer, JobRejected:
		return true
	}
	return false
}

type Job struct {
	ID          int       `json:"id,omitempty"`
	CompanyName string    `json:"company_name"`
	Position    string    `json:"position"`
	DateApplied string    `json:"date_applied"`
	Status      JobStatus `json:"status,omitempty"`
	Link        string    `json:"link,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   string    `json:"created_at,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type idTokenRequest struct {
	Token string `json:"token"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type reserveRequest struct {
	FoodItem string `json:"food_item"`
	Quantity int    `json:"quantity"`
}

type messageResponse struct {
	Message string `json:"message"`
}
