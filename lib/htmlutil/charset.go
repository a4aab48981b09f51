package htmlutil

import (
	"bytes"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
)

type Charset int

const (
	// CharsetAuto picks GBK when the response looks like it, UTF-8 otherwise.
	CharsetAuto Charset = iota
	CharsetUTF8
	CharsetGBK
)

func (c Charset) String() string {
	switch c {
	case CharsetUTF8:
		return "utf-8"
	case CharsetGBK:
		return "gbk"
	default:
		return "auto"
	}
}

var gbMarker = []byte("charset=gb")

// DetectCharset decides how a response body should be decoded.
//
// GBK is chosen when the content type declares a GB family charset, when the
// body declares one itself (meta tag) or when the body isn't valid UTF-8.
func DetectCharset(body []byte, contentType string) Charset {
	if isGBLabel(declaredCharset(contentType)) {
		return CharsetGBK
	}
	if !utf8.Valid(body) {
		return CharsetGBK
	}
	if bytes.Contains(bytes.ToLower(body), gbMarker) {
		return CharsetGBK
	}
	return CharsetUTF8
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		lower := strings.ToLower(contentType)
		idx := strings.Index(lower, "charset=")
		if idx < 0 {
			return ""
		}
		return strings.Trim(lower[idx+len("charset="):], `"' ;`)
	}
	return params["charset"]
}

func isGBLabel(label string) bool {
	if label == "" {
		return false
	}
	enc, _ := charset.Lookup(label)
	return enc == simplifiedchinese.GBK ||
		enc == simplifiedchinese.GB18030 ||
		enc == simplifiedchinese.HZGB2312
}

// DecodeBody converts a response body to a UTF-8 string, with CharsetAuto the
// charset is picked by DetectCharset.
func DecodeBody(body []byte, contentType string, hint Charset) string {
	if hint == CharsetAuto {
		hint = DetectCharset(body, contentType)
	}
	if hint != CharsetGBK {
		return string(body)
	}
	return decodeWith(simplifiedchinese.GB18030, body)
}

func decodeWith(enc encoding.Encoding, body []byte) string {
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
