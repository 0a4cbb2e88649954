//go:build darwin

package gate

import (
	"fmt"
	"os/exec"
	"strings"
)

// osaResolver shells out to osascript to identify the frontmost application.
type osaResolver struct{}

// NewSystemResolver returns the macOS foreground-app resolver.
func NewSystemResolver() AppResolver {
	return osaResolver{}
}

func (osaResolver) FrontmostApp() (string, string, error) {
	script := `tell application "System Events" to tell (first process whose frontmost is true) to return (bundle identifier & "\n" & name)`
	out, err := exec.Command("osascript", "-e", script).Output()
	if err != nil {
		return "", "", fmt.Errorf("osascript: %w", err)
	}
	lines := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)
	if len(lines) != 2 {
		return "", "", fmt.Errorf("unexpected osascript output %q", string(out))
	}
	return strings.TrimSpace(lines[0]), strings.TrimSpace(lines[1]), nil
}
