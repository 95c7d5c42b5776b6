// Package main provides the kalender service and its command line client.
package main

import "github.com/mscno/kalender/cmd/kalender/commands"

func main() {
	commands.Execute(Version)
}
