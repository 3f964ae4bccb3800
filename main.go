package main

import "github.com/frahmantamala/procurement-workflow/cmd"

func main() {
	cmd.Execute()
}
