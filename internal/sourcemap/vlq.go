package sourcemap

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Decode [256]int8

func init() {
	for i := range base64Decode {
		base64Decode[i] = -1
	}
	for i := 0; i < len(base64Chars); i++ {
		base64Decode[base64Chars[i]] = int8(i)
	}
}

const (
	vlqBaseShift    = 5
	vlqBase         = 1 << vlqBaseShift
	vlqBaseMask     = vlqBase - 1
	vlqContinueBit  = vlqBase
	vlqSignBit      = 1
)

// encodeVLQ appends the base64-VLQ encoding of n to b.
func encodeVLQ(b *strings.Builder, n int64) {
	var v int64
	if n < 0 {
		v = (-n << 1) | vlqSignBit
	} else {
		v = n << 1
	}
	for {
		digit := v & vlqBaseMask
		v >>= vlqBaseShift
		if v > 0 {
			digit |= vlqContinueBit
		}
		b.WriteByte(base64Chars[digit])
		if v == 0 {
			break
		}
	}
}

// decodeVLQ decodes one base64-VLQ signed integer starting at s[pos],
// returning the value and the index just past it. It round-trips with
// encodeVLQ for every int32 value, per the engine's Base64-VLQ testable
// property.
func decodeVLQ(s string, pos int) (int64, int, error) {
	var result int64
	shift := uint(0)
	start := pos
	for {
		if pos >= len(s) {
			return 0, pos, fmt.Errorf("sourcemap: truncated VLQ at %d", start)
		}
		c := s[pos]
		digit := base64Decode[c]
		if digit < 0 {
			return 0, pos, fmt.Errorf("sourcemap: invalid VLQ byte %q at %d", c, pos)
		}
		pos++

		cont := digit&vlqContinueBit != 0
		digit &^= vlqContinueBit

		part, err := safecast.Conv[int64](digit)
		if err != nil {
			return 0, pos, err
		}
		result += part << shift
		shift += vlqBaseShift

		if !cont {
			break
		}
	}

	negative := result&vlqSignBit != 0
	result >>= 1
	if negative {
		result = -result
	}
	return result, pos, nil
}

// clampInt32 bounds-checks a generated/source column or line delta to the
// int32 range VLQ mappings realistically carry, the way the VLQ codec's
// round-trip property is specified over (-2^31 .. 2^31-1).
func clampInt32(n int64) (int32, error) {
	return safecast.Conv[int32](n)
}
