package deps

import (
	"fmt"
	"os/exec"
)

const (
	ExiftoolInstallURL = "https://exiftool.org/install.html"
	FfmpegInstallURL   = "https://ffmpeg.org/download.html"
)

// DependencyError contains information about a missing external binary.
type DependencyError struct {
	Name       string
	InstallURL string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s not found. Install from: %s", e.Name, e.InstallURL)
}

// CheckExiftool checks if exiftool is installed and available in PATH.
func CheckExiftool() error {
	if _, err := exec.LookPath("exiftool"); err != nil {
		return &DependencyError{Name: "exiftool", InstallURL: ExiftoolInstallURL}
	}
	return nil
}

// CheckFfmpeg checks if ffmpeg is installed and available in PATH.
func CheckFfmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return &DependencyError{Name: "ffmpeg", InstallURL: FfmpegInstallURL}
	}
	return nil
}

// CheckAll checks all dependencies and returns a slice of errors for missing ones.
func CheckAll() []error {
	var errs []error
	if err := CheckExiftool(); err != nil {
		errs = append(errs, err)
	}
	if err := CheckFfmpeg(); err != nil {
		errs = append(errs, err)
	}
	return errs
}
