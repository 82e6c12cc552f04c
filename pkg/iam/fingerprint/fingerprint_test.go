package fingerprint_test

import (
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/iam/fingerprint"
	"github.com/stretchr/testify/assert"
)

func baseContext() fingerprint.RequestContext {
	return fingerprint.RequestContext{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) Chrome/126.0 Safari/537.36",
		IP:             "203.0.113.7",
		AcceptLanguage: "en-US,en;q=0.9",
		Referer:        "https://app.example.com/dashboard?tab=1",
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	rc := baseContext()
	a := fingerprint.Generate(rc, "hash-alice")
	b := fingerprint.Generate(rc, "hash-alice")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestGenerateChangesWithEveryInput(t *testing.T) {
	base := fingerprint.Generate(baseContext(), "hash-alice")

	mutations := map[string]func(*fingerprint.RequestContext){
		"ip":         func(rc *fingerprint.RequestContext) { rc.IP = "198.51.100.1" },
		"user agent": func(rc *fingerprint.RequestContext) { rc.UserAgent = "curl/8.0" },
		"language":   func(rc *fingerprint.RequestContext) { rc.AcceptLanguage = "de-DE" },
		"referer":    func(rc *fingerprint.RequestContext) { rc.Referer = "https://evil.example.net/" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			rc := baseContext()
			mutate(&rc)
			assert.NotEqual(t, base, fingerprint.Generate(rc, "hash-alice"))
		})
	}

	assert.NotEqual(t, base, fingerprint.Generate(baseContext(), "hash-bob"))
}

func TestRefererPathDoesNotMatter(t *testing.T) {
	rc := baseContext()
	other := baseContext()
	other.Referer = "https://app.example.com/settings"
	assert.Equal(t, fingerprint.Generate(rc, "h"), fingerprint.Generate(other, "h"))
}

func TestMissingHeadersStillProduceFingerprint(t *testing.T) {
	fp := fingerprint.Generate(fingerprint.RequestContext{}, "")
	assert.Len(t, fp, 64)

	rc := fingerprint.RequestContext{Referer: "not a url"}
	assert.Equal(t, "", rc.RefererOrigin())
	assert.Equal(t, fp, fingerprint.Generate(rc, ""))
}

func TestEqual(t *testing.T) {
	fp := fingerprint.Generate(baseContext(), "h")
	assert.True(t, fingerprint.Equal(fp, fp))
	assert.False(t, fingerprint.Equal(fp, ""))
	assert.False(t, fingerprint.Equal("", ""))
}

func TestDescribeDevice(t *testing.T) {
	cases := []struct {
		ua   string
		want fingerprint.Device
	}{
		{
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1",
			want: fingerprint.Device{Device: "Mobile", Browser: "Safari 17", OS: "iOS"},
		},
		{
			ua:   "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/126.0.0.0 Mobile Safari/537.36",
			want: fingerprint.Device{Device: "Mobile", Browser: "Chrome 126", OS: "Android"},
		},
		{
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36 Edg/126.0",
			want: fingerprint.Device{Device: "Desktop", Browser: "Edge 126", OS: "Windows 10/11"},
		},
		{
			ua:   "",
			want: fingerprint.Device{Device: "Unknown", Browser: "Unknown", OS: "Unknown"},
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, fingerprint.DescribeDevice(tc.ua), tc.ua)
	}
}
