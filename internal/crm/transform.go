package crm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/revline/internal/types"
)

var (
	// ErrUnsupportedPlatform is returned for platform names outside the
	// supported set. This is the only failure path in the transformer layer:
	// field-level defects inside records are absorbed by defaulting instead.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrMalformedPayload is returned when the top-level payload is neither
	// a JSON array nor a single object.
	ErrMalformedPayload = errors.New("malformed payload")
)

// ParsePlatform resolves a platform name case-insensitively.
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	for _, supported := range SupportedPlatforms {
		if p == supported {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, name)
}

// TransformDeals is the single entry point of the normalization layer. It
// normalizes the payload into a record array (wrapping a bare object),
// routes to the platform transformer, and returns its result unchanged.
// The per-platform transformers never fail; only an unsupported platform
// name or a structurally malformed payload produces an error.
func TransformDeals(raw json.RawMessage, platform, accountID, createdBy string) (*types.TransformResult, error) {
	p, err := ParsePlatform(platform)
	if err != nil {
		return nil, err
	}

	records, err := normalizeRecords(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch p {
	case PlatformPipedrive:
		return transformPipedrive(records, accountID, createdBy, now), nil
	case PlatformSalesforce:
		return transformSalesforce(records, accountID, createdBy, now), nil
	case PlatformHubSpot:
		return transformHubSpot(records, accountID, createdBy, now), nil
	case PlatformZoho:
		return transformZoho(records, accountID, createdBy, now), nil
	case PlatformFolk:
		return transformFolk(records, accountID, createdBy, now), nil
	}
	// Unreachable: ParsePlatform already rejected anything else.
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
}

// normalizeRecords turns the raw payload into a record array. A bare object
// becomes a one-element array; null or empty input becomes an empty array.
func normalizeRecords(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return records, nil
	case '{':
		return []json.RawMessage{raw}, nil
	default:
		return nil, fmt.Errorf("%w: expected array or object", ErrMalformedPayload)
	}
}

// newResult returns an empty result with non-nil slices so empty inputs
// serialize as {"deals": [], "deal_contacts": []}.
func newResult() *types.TransformResult {
	return &types.TransformResult{
		Deals:        []types.Deal{},
		DealContacts: []types.DealContact{},
	}
}
