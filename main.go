package main

import "github.com/KaramelBytes/soilfusion-cli/cmd"

func main() {
	cmd.Execute()
}
