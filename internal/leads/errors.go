package leads

import "errors"

var (
	ErrInvalidOffer      = errors.New("invalid offer")
	ErrNoOfferConfigured = errors.New("no offer configured")
	ErrNoLeadsUploaded   = errors.New("no leads uploaded")
	ErrNoResults         = errors.New("no scored results available")
)
