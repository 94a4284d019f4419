package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
)

// DefaultRegion is the unknown region: numbers must carry a +country code.
const DefaultRegion = "ZZ"

// Normalizer turns a user supplied phone number into the canonical rendering
// the relay indexes phone hashes by.
type Normalizer interface {
	Normalize(raw string) (string, error)
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(raw string) (string, error)

func (f NormalizerFunc) Normalize(raw string) (string, error) {
	return f(raw)
}

// LibPhoneNumberNormalizer formats numbers in libphonenumber INTERNATIONAL format,
// e.g. "+82 10-1000-2000".
type LibPhoneNumberNormalizer struct {
	region string
}

func NewLibPhoneNumberNormalizer(defaultRegion string) *LibPhoneNumberNormalizer {
	if defaultRegion == "" {
		defaultRegion = DefaultRegion
	}
	return &LibPhoneNumberNormalizer{region: strings.ToUpper(defaultRegion)}
}

func (n *LibPhoneNumberNormalizer) Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", relayerr.InvalidPhoneNumber(raw, nil)
	}
	number, err := phonenumbers.ParseAndKeepRawInput(trimmed, n.region)
	if err != nil {
		return "", relayerr.InvalidPhoneNumber(raw, err)
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", relayerr.InvalidPhoneNumber(raw, nil)
	}
	return phonenumbers.Format(number, phonenumbers.INTERNATIONAL), nil
}

var _ Normalizer = (*LibPhoneNumberNormalizer)(nil)
