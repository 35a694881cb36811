package main

import "github.com/vibast-solutions/ms-go-gallery/cmd"

func main() {
	cmd.Execute()
}
