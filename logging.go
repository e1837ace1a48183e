package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging tees the standard logger into a rotating file under dir.
// An empty dir keeps logging on stderr only.
func setupLogging(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "fishlog.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return nil
}
