package main

import "github.com/saturnino-fabrica-de-software/facewatch/internal/cli"

func main() {
	cli.Execute()
}
