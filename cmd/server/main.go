package main

import "github.com/eleven-am/dinevoice/internal/bootstrap"

func main() {
	bootstrap.Run()
}
