package main

import "github.com/goliatone/go-content-cache/cmd/contentd/cmd"

func main() {
	cmd.Execute()
}
