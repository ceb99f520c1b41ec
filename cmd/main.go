package main

import (
	"github.com/stats-sampler/cmd/app"
)

func main() {
	app.Execute()
}
