package utils

import (
	"os"
	"runtime"
)

// GetHostname returns the machine name, or "unknown" when the OS refuses.
func GetHostname() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}

// GetUsername returns the login name of the current user from the
// platform's environment. Empty when not set.
func GetUsername() string {
	switch runtime.GOOS {
	case "windows":
		return os.Getenv("USERNAME")
	default:
		if u := os.Getenv("USER"); u != "" {
			return u
		}
		return os.Getenv("LOGNAME")
	}
}

// GetDisplayName returns "user@host" when the user is known, else the hostname.
// Clients show it as the title of the machine they are talking to.
func GetDisplayName() string {
	host := GetHostname()
	if user := GetUsername(); user != "" {
		return user + "@" + host
	}
	return host
}
