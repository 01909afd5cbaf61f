package feed

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/itter-sh/itter/internal/common"
)

// Cursors are opaque to clients: a base64 wrapper around the last sequence
// id the previous page ended on. Keyset pagination on seq keeps pages
// non-overlapping and exhaustive even while new eets arrive.

func encodeCursor(lastSeq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte("seq:" + strconv.FormatInt(lastSeq, 10)))
}

func decodeCursor(token string) (int64, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: bad cursor", common.ErrValidation)
	}
	val, ok := strings.CutPrefix(string(raw), "seq:")
	if !ok {
		return 0, fmt.Errorf("%w: bad cursor", common.ErrValidation)
	}
	seq, err := strconv.ParseInt(val, 10, 64)
	if err != nil || seq < 1 {
		return 0, fmt.Errorf("%w: bad cursor", common.ErrValidation)
	}
	return seq, nil
}
