package cryptox

import (
	"log/slog"
	"os"
	"path/filepath"
)

var (
	// Pepper is loaded from a file or generated on first use.
	pepper     string
	pepperFile string
)

func SetPepperPath(file string) {
	pepperFile = file
}

func GetPepper() string {
	if pepper != "" {
		return pepper
	}

	var err error
	pepper, err = loadOrGeneratePepper()
	if err != nil {
		slog.Error("failed to load or generate pepper", slog.Any("err", err))
		os.Exit(1)
	}
	return pepper
}

func loadOrGeneratePepper() (string, error) {
	pepperFile = filepath.Clean(pepperFile)
	if err := os.MkdirAll(filepath.Dir(pepperFile), 0750); err != nil {
		return "", err
	}

	if data, err := os.ReadFile(pepperFile); err == nil {
		return string(data), nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	p, err := GenerateToken(TokenSize256)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(pepperFile, []byte(p), 0600); err != nil {
		return "", err
	}
	return p, nil
}
