package requestlog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ContentType is the content type of an encoded envelope.
const ContentType = "application/json"

// ErrMalformedEnvelope is returned when a broker payload cannot be turned into a Record.
var ErrMalformedEnvelope = errors.New("malformed log envelope")

// EncodeEnvelope serializes a record into its wire form. The storage
// identifier is never part of the envelope.
func EncodeEnvelope(rec Record) ([]byte, error) {
	rec.ID = ""
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// DecodeEnvelope parses a wire payload back into a Record.
// Syntax errors, a null document and missing required fields all
// yield an error wrapping ErrMalformedEnvelope.
func DecodeEnvelope(body []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch {
	case rec.Method == "":
		return Record{}, fmt.Errorf("%w: method is required", ErrMalformedEnvelope)
	case rec.Path == "":
		return Record{}, fmt.Errorf("%w: path is required", ErrMalformedEnvelope)
	case rec.TimestampUTC.IsZero():
		return Record{}, fmt.Errorf("%w: timestampUtc is required", ErrMalformedEnvelope)
	case rec.StatusCode < 100 || rec.StatusCode > 599:
		return Record{}, fmt.Errorf("%w: statusCode %d out of range", ErrMalformedEnvelope, rec.StatusCode)
	}

	rec.ID = ""
	rec.TimestampUTC = rec.TimestampUTC.UTC()
	return rec, nil
}
