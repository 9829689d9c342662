package jsonfile

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

// floatArray is a vector as stored in the documents. Non-finite components
// are written as null and read back as NaN so a corrupted vector survives a
// round trip and is rejected by the matcher instead of by the decoder.
type floatArray []float32

func (f floatArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, x := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		v := float64(x)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 32))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (f *floatArray) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(floatArray, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = float32(math.NaN())
			continue
		}
		out[i] = float32(*p)
	}
	*f = out
	return nil
}

// Documents written by other tools may contain bare NaN / Infinity tokens,
// which encoding/json rejects.
var nonFiniteToken = regexp.MustCompile(`([\[,:]\s*)-?(?:NaN|Infinity)`)

func sanitizeNonFinite(data []byte) []byte {
	return nonFiniteToken.ReplaceAll(data, []byte("${1}null"))
}
