package parser

import "errors"

var (
	ErrListingMissing        = errors.New("listing markup not found")
	ErrInvalidPrice          = errors.New("invalid listing price")
	ErrStructuredDataMissing = errors.New("structured data block not found")
	ErrImagesMissing         = errors.New("structured data has no image field")
	ErrMarkupMissing         = errors.New("product markup not found")
)
