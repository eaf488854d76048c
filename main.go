// Command campus-kg-crawler crawls institution websites into knowledge-graph triples.
package main

import (
	"github.com/JakeFAU/campus-kg-crawler/cmd"
)

func main() {
	cmd.Execute()
}
