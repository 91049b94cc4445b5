package main

import (
	huddle "github.com/putto11262002/huddle/app"
)

func main() {
	app := huddle.New(nil, nil)
	app.Start()
}
