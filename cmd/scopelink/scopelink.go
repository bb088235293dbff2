/*
scopelink receives the video stream of a WiFi borescope camera
*/
package main

import "github.com/borescope/scopelink/cmd/scopelink/commands"

func main() {
	commands.Execute()
}
