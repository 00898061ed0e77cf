package main

import "github.com/stoik/tempmail/services/tempmail/internal/app"

func main() {
	app.Execute()
}
