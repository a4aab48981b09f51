package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func gbk(t *testing.T, s string) []byte {
	t.Helper()
	encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return encoded
}

func TestDecodeBody(t *testing.T) {
	text := "<html><body>保存成功</body></html>"

	testCases := []struct {
		name        string
		body        []byte
		contentType string
		hint        Charset
		expected    string
		detected    Charset
	}{
		{
			name:        "utf8 declared",
			body:        []byte(text),
			contentType: "text/html; charset=UTF-8",
			expected:    text,
			detected:    CharsetUTF8,
		},
		{
			name:        "gbk declared in content type",
			body:        gbk(t, text),
			contentType: "text/html; charset=GBK",
			expected:    text,
			detected:    CharsetGBK,
		},
		{
			name:        "gb2312 declared in content type",
			body:        gbk(t, text),
			contentType: "text/html;charset=gb2312",
			expected:    text,
			detected:    CharsetGBK,
		},
		{
			name:     "gbk undeclared",
			body:     gbk(t, text),
			expected: text,
			detected: CharsetGBK,
		},
		{
			name:     "gbk declared in meta",
			body:     []byte(`<meta http-equiv="Content-Type" content="text/html; charset=GBK">ok`),
			expected: `<meta http-equiv="Content-Type" content="text/html; charset=GBK">ok`,
			detected: CharsetGBK,
		},
		{
			name:     "forced utf8",
			body:     []byte(text),
			hint:     CharsetUTF8,
			expected: text,
			detected: CharsetUTF8,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.detected, DetectCharset(test.body, test.contentType))
			require.Equal(t, test.expected, DecodeBody(test.body, test.contentType, test.hint))
		})
	}
}

func TestUnescapeAttr(t *testing.T) {
	raw := `{\"jsid\":\"T01\",\"kcmc\":\"C&amp;C &lt;1&gt;\",\"xm\":&quot;王&#39;老师&quot;}`
	require.Equal(
		t,
		`{"jsid":"T01","kcmc":"C&C <1>","xm":"王'老师"}`,
		UnescapeAttr(raw),
	)
}

func TestInputValues(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<form>
			<input type="hidden" name="zbmb_m" value="Z01">
			<input type="hidden" name="zbdm" value="0001">
			<input type="hidden" name="zbdm" value="">
			<input type="hidden" name="zbdm" value="0002">
			<textarea name="wjdm">W01</textarea>
			<input name="wjdm" value="W02">
		</form>
	`))
	require.NoError(t, err)

	value, ok := InputValue(doc, "zbmb_m")
	require.True(t, ok)
	require.Equal(t, "Z01", value)

	_, ok = InputValue(doc, "wjmb_m")
	require.False(t, ok)

	require.Equal(t, []string{"0001", "0002"}, InputValues(doc, "zbdm"))
	require.Equal(t, []string{"W01", "W02"}, InputValues(doc, "wjdm"))
	require.Empty(t, InputValues(doc, "missing"))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "高等 数学", CleanText("  高等 \n\t 数学\u0000 "))
}
