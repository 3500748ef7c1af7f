//go:build !linux && !darwin

package store

import (
	"os"
	"time"
)

func creationTime(fi os.FileInfo) time.Time {
	return fi.ModTime()
}
