package main

import (
	_ "github.com/eleven-am/kickflip/docs"
	"github.com/eleven-am/kickflip/internal/bootstrap"
)

// @title Kickflip API
// @version 1.0.0
// @description Samples skateboarding videos and asks a vision model whether the kickflip landed

// @host localhost:8080
// @BasePath /

func main() {
	bootstrap.Run()
}
