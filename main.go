// The main package for the cardshow-scraper executable.
package main

import (
	"github.com/cardshowfinder/scraper/cmd"
)

func main() {
	cmd.Execute()
}
