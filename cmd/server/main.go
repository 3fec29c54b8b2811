package main

import "attendance/cmd/server/cmd"

func main() {
	cmd.Execute()
}
