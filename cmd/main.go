package main

import (
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/app"
)

func main() {
	app.New().Run()
}
