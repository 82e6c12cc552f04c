package fingerprint

import "strings"

// Device is the informational description stored with a session
type Device struct {
	Device  string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

// DescribeDevice parses a User-Agent header into browser, OS and device class
func DescribeDevice(ua string) Device {
	if ua == "" {
		return Device{Device: "Unknown", Browser: "Unknown", OS: "Unknown"}
	}
	return Device{
		Device:  deviceClass(ua),
		Browser: browserName(ua),
		OS:      osName(ua),
	}
}

func browserName(ua string) string {
	var name, key string
	switch {
	case strings.Contains(ua, "Edg/"):
		name, key = "Edge", "Edg/"
	case strings.Contains(ua, "OPR/"):
		name, key = "Opera", "OPR/"
	case strings.Contains(ua, "Firefox/"):
		name, key = "Firefox", "Firefox/"
	case strings.Contains(ua, "Chrome/"):
		name, key = "Chrome", "Chrome/"
	case strings.Contains(ua, "Safari/"):
		name, key = "Safari", "Version/"
	case strings.Contains(ua, "curl/"):
		name, key = "curl", "curl/"
	default:
		return "Unknown"
	}
	if v := majorVersion(ua, key); v != "" {
		return name + " " + v
	}
	return name
}

func majorVersion(ua, key string) string {
	idx := strings.Index(ua, key)
	if idx == -1 {
		return ""
	}
	start := idx + len(key)
	end := start
	for end < len(ua) && ua[end] >= '0' && ua[end] <= '9' {
		end++
	}
	return ua[start:end]
}

// iOS and Android user agents also mention macOS and Linux, so they go first.
func osName(ua string) string {
	switch {
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Windows NT 10.0"):
		return "Windows 10/11"
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Mac OS X"):
		return "macOS"
	case strings.Contains(ua, "CrOS"):
		return "ChromeOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}

func deviceClass(ua string) string {
	switch {
	case strings.Contains(ua, "iPad"), strings.Contains(ua, "Tablet"):
		return "Tablet"
	case strings.Contains(ua, "Mobi"), strings.Contains(ua, "iPhone"), strings.Contains(ua, "Android"):
		return "Mobile"
	case strings.Contains(ua, "Mozilla/"):
		return "Desktop"
	default:
		return "Other"
	}
}
