// Package ticketcode encodes and decodes the payload embedded in a ticket's QR
// image. The format is "EVENT-<event uuid>-<attendee uuid>": both tokens are
// fixed-width 36-character UUID strings, so decoding is a lossless fixed-width
// split with no lookup. Encoding is deterministic, which is what lets issuance
// stay idempotent per (event, attendee).
package ticketcode

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/whereabout/gate-ticketing/internal/domain"
)

const (
	prefix   = "EVENT-"
	tokenLen = 36 // canonical uuid string length

	codeLen = len(prefix) + tokenLen + 1 + tokenLen
)

func Encode(eventID, attendeeID uuid.UUID) string {
	return prefix + eventID.String() + "-" + attendeeID.String()
}

// Decode parses a scanned payload back into its event and attendee identifiers.
// Surrounding whitespace is tolerated; anything else that deviates from the
// fixed-width pattern yields domain.ErrMalformedCode.
func Decode(raw string) (eventID, attendeeID uuid.UUID, err error) {
	code := strings.TrimSpace(raw)
	if len(code) != codeLen || !strings.HasPrefix(code, prefix) {
		return uuid.Nil, uuid.Nil, errors.Wrapf(domain.ErrMalformedCode, "payload %q", code)
	}

	body := code[len(prefix):]
	if body[tokenLen] != '-' {
		return uuid.Nil, uuid.Nil, errors.Wrapf(domain.ErrMalformedCode, "payload %q", code)
	}

	eventID, err = uuid.Parse(body[:tokenLen])
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.Mark(err, domain.ErrMalformedCode)
	}
	attendeeID, err = uuid.Parse(body[tokenLen+1:])
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.Mark(err, domain.ErrMalformedCode)
	}
	return eventID, attendeeID, nil
}
