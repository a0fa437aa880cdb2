package api

import (
	"bytes"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Seconds is a duration in whole seconds. The auth endpoint is inconsistent
// about its type: expires_in arrives as either a JSON number or a quoted
// numeric string, so unmarshaling accepts both.
type Seconds int64

func (s Seconds) Duration() time.Duration {
	return time.Duration(s) * time.Second
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(s), 10)), nil
}

func (s *Seconds) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}

	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return errors.Wrap(err, "invalid seconds value")
	}

	*s = Seconds(v)
	return nil
}
