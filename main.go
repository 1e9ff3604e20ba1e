package main

import "datachat/cmd"

func main() {
	cmd.Execute()
}
