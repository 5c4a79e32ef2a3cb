package utils

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

var (
	invalidDeviceChars = regexp.MustCompile(`[^a-z0-9\-_]`)
	repeatedHyphens    = regexp.MustCompile(`-+`)
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// GetHostname returns the system hostname.
func GetHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return hostname, nil
}

// SanitizeDeviceName lowercases a device name, turns spaces into hyphens and
// drops anything that is not alphanumeric, a hyphen or an underscore.
func SanitizeDeviceName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")
	name = invalidDeviceChars.ReplaceAllString(name, "")
	name = repeatedHyphens.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")

	if name == "" {
		name = "device"
	}
	return name
}

// DeviceName returns the sanitized hostname, falling back to the username and
// then to "device" when neither is available.
func DeviceName() string {
	if hostname, err := GetHostname(); err == nil {
		return SanitizeDeviceName(hostname)
	}
	if username, err := GetUsername(); err == nil {
		return SanitizeDeviceName(username)
	}
	return "device"
}
