package useragent

import "strings"

const unknown = "Unknown Device"

var browsers = []struct {
	name    string
	marker  string
	exclude string
}{
	{"Edge", "Edg/", ""},
	{"Chrome", "Chrome/", "Edg"},
	{"Firefox", "Firefox/", ""},
	{"Safari", "Safari/", "Chrome"},
}

// Order matters: Android and iOS agents also mention Linux and Mac OS X.
var systems = []struct {
	name    string
	markers []string
}{
	{"Android", []string{"Android"}},
	{"iOS", []string{"iPhone", "iPad"}},
	{"Windows", []string{"Windows"}},
	{"macOS", []string{"Mac OS X"}},
	{"Linux", []string{"Linux"}},
}

// Describe turns a User-Agent string into a short label such as
// "Chrome 120 on Windows", used when listing sessions.
func Describe(ua string) string {
	if ua == "" {
		return unknown
	}

	browser, version := "", ""
	for _, b := range browsers {
		if strings.Contains(ua, b.marker) && (b.exclude == "" || !strings.Contains(ua, b.exclude)) {
			browser = b.name
			version = majorVersion(ua, b.marker)
			break
		}
	}

	system := ""
	for _, s := range systems {
		if containsAny(ua, s.markers) {
			system = s.name
			break
		}
	}

	switch {
	case browser == "" && system == "":
		return ua
	case browser == "":
		return "Unknown Browser on " + system
	case system == "":
		system = "Unknown OS"
	}
	if version != "" {
		return browser + " " + version + " on " + system
	}
	return browser + " on " + system
}

func majorVersion(ua, marker string) string {
	idx := strings.Index(ua, marker)
	if idx == -1 {
		return ""
	}
	start := idx + len(marker)
	end := start
	for end < len(ua) && ua[end] >= '0' && ua[end] <= '9' {
		end++
	}
	return ua[start:end]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
