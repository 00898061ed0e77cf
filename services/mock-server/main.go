package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/stoik/tempmail/internal/mock"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := mock.NewServer()

	// Drop random mail into every mailbox unless disabled
	if interval := os.Getenv("GENERATE_INTERVAL"); interval != "off" {
		every := 30 * time.Second
		if interval != "" {
			d, err := time.ParseDuration(interval)
			if err != nil {
				log.Fatalf("Invalid GENERATE_INTERVAL %q: %v", interval, err)
			}
			every = d
		}
		go server.GenerateMessages(context.Background(), every)
	}

	r := gin.Default()
	server.Register(r)

	addr := fmt.Sprintf(":%s", port)
	log.Infof("Starting tempmail mock provider API on %s (mail.tm at /, guerrilla at /ajax.php)", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
