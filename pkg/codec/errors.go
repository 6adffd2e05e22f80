package codec

import (
	"errors"
	"fmt"
)

// Stage is the decoding step that rejected a payload.
type Stage int

const (
	Decrypt Stage = iota + 1
	Decompress
	Deserialize
)

func (s Stage) String() string {
	switch s {
	case Decrypt:
		return "decrypt"
	case Decompress:
		return "decompress"
	case Deserialize:
		return "deserialize"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// DecodeFailure is returned by Decode for every malformed input.
type DecodeFailure struct {
	Stage Stage
	Err   error
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("decode line map: %s: %v", e.Stage, e.Err)
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

// FailureStage returns the stage of a DecodeFailure found in err's chain.
func FailureStage(err error) (Stage, bool) {
	var f *DecodeFailure
	if errors.As(err, &f) {
		return f.Stage, true
	}
	return 0, false
}

var (
	errBadMagic     = errors.New("bad magic")
	errChecksum     = errors.New("checksum mismatch")
	errTruncated    = errors.New("truncated payload")
	errTrailingData = errors.New("trailing data")
	errBadPadding   = errors.New("invalid padding")
)
