package main

import "cafemanager/cmd"

func main() {
	cmd.Execute()
}
