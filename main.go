package main

import "showbot/cmd"

func main() {
	cmd.Execute()
}
