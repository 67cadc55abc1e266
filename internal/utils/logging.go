package utils

import (
	"io"
	"log"
)

// InitLogging initializes logging
func InitLogging(level string) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if level == "silent" {
		log.SetOutput(io.Discard)
	}
}
