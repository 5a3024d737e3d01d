package main

import (
	"vizinsight/cli"
	_ "vizinsight/docs" // Swagger docs
)

func main() {
	cli.Execute()
}
