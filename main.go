package main

import (
	"github.com/micielski/filmweb-export/cmd"
)

func main() {
	cmd.Execute()
}
