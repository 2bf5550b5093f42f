// Package receipt encodes, decodes and resolves receipt numbers.
//
// A receipt number is "{instance}-{liability type}-{sequence}". The first two
// parts round-trip without a lookup; the sequence is assigned by storage when
// an entry is created and is monotonic per (instance, liability type).
package receipt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"las/internal/ledger/models"
	dErrors "las/pkg/domain-errors"
)

// ErrMalformed is the cause carried by every MalformedIdentifier error.
var ErrMalformed = errors.New("malformed receipt number")

// Number is a decoded receipt number.
type Number struct {
	InstanceID      models.InstanceID
	LiabilityTypeID models.LiabilityTypeID
	Sequence        int64
}

// Format renders a receipt number zero-padded as 0001-0005-00002.
func Format(instanceID models.InstanceID, liabilityTypeID models.LiabilityTypeID, sequence int64) string {
	return fmt.Sprintf("%04d-%04d-%05d", instanceID, liabilityTypeID, sequence)
}

func (n Number) String() string {
	return Format(n.InstanceID, n.LiabilityTypeID, n.Sequence)
}

// Decode splits text into exactly three hyphen-separated decimal numerals.
// Any other shape fails with CodeMalformedIdentifier carrying text.
func Decode(text string) (Number, error) {
	parts := strings.Split(text, "-")
	if len(parts) != 3 {
		return Number{}, malformed(text)
	}
	var values [3]int64
	for i, part := range parts {
		v, ok := parseNumeral(part)
		if !ok {
			return Number{}, malformed(text)
		}
		values[i] = v
	}
	return Number{
		InstanceID:      models.InstanceID(values[0]),
		LiabilityTypeID: models.LiabilityTypeID(values[1]),
		Sequence:        values[2],
	}, nil
}

// parseNumeral accepts ASCII digits only; strconv alone would let signs through.
func parseNumeral(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func malformed(text string) error {
	return &dErrors.Error{
		Code:    dErrors.CodeMalformedIdentifier,
		Message: fmt.Sprintf("cannot decode receipt_number %q", text),
		Err:     ErrMalformed,
	}
}
