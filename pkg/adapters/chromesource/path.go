package chromesource

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ResolveChromePath returns the browser executable to launch. An explicit
// path wins, then CHROME_PATH, then the platform's usual install locations.
// An empty result means chromedp's own lookup is used.
func ResolveChromePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("CHROME_PATH"); env != "" {
		return env
	}
	for _, candidate := range chromeCandidates(runtime.GOOS) {
		if path := lookupExecutable(candidate); path != "" {
			return path
		}
	}
	return ""
}

// chromeCandidates lists Chromium builds before Chrome for each platform.
func chromeCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		}
	case "windows":
		var out []string
		for _, env := range []string{"PROGRAMFILES", "PROGRAMFILES(X86)", "LOCALAPPDATA"} {
			root := os.Getenv(env)
			if root == "" {
				continue
			}
			out = append(out,
				filepath.Join(root, "Chromium", "Application", "chrome.exe"),
				filepath.Join(root, "Google", "Chrome", "Application", "chrome.exe"),
			)
		}
		return out
	default:
		return []string{"chromium", "chromium-browser", "google-chrome-stable", "google-chrome"}
	}
}

// lookupExecutable checks absolute paths on disk and bare names on PATH.
func lookupExecutable(name string) string {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name
		}
		return ""
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}
