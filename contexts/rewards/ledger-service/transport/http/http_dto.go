package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ProfileResponse struct {
	ValidatorID          string   `json:"validator_id"`
	Diamonds             int      `json:"diamonds"`
	Tickets              int      `json:"tickets"`
	ValidationsCompleted int      `json:"validations_completed"`
	TrustedNetwork       []string `json:"trusted_network"`
}
