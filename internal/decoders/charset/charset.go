// Package charset detects the character encoding of text-like documents and
// transcodes them to UTF-8.
package charset

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// UTF8 is the name reported for UTF-8 input and for fallback decoding.
const UTF8 = "utf-8"

// minConfidence is the chardet confidence below which detection is ignored.
const minConfidence = 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts data to a UTF-8 string and reports the charset used.
// Valid UTF-8 is taken as-is. Otherwise the charset is detected from the
// byte stream; when detection fails or the charset is unknown the bytes are
// decoded as UTF-8 with invalid sequences replaced by U+FFFD.
func Decode(data []byte) (string, string) {
	if bytes.HasPrefix(data, utf8BOM) {
		data = data[len(utf8BOM):]
	}
	if utf8.Valid(data) {
		return string(data), UTF8
	}

	name, ok := Detect(data)
	if ok {
		if text, err := transcode(data, name); err == nil {
			return text, name
		}
	}
	return strings.ToValidUTF8(string(data), "�"), UTF8
}

// Detect guesses the charset of data. It returns false when no guess
// reaches the confidence threshold.
func Detect(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil || result.Confidence < minConfidence {
		return "", false
	}
	return strings.ToLower(result.Charset), true
}

func transcode(data []byte, name string) (string, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	out = bytes.TrimPrefix(out, utf8BOM)
	return strings.ToValidUTF8(string(out), "�"), nil
}
